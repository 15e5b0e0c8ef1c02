// Package seed fills an empty store with a staff account and a small demo
// catalog.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smarthub/internal/middleware"
	"smarthub/internal/models"
	"smarthub/internal/repository"
)

type Options struct {
	AdminEmail    string
	AdminPassword string
	// Demo adds sample events, facilities, parking lots and a citizen account.
	Demo bool
	// Now anchors event dates; defaults to time.Now.
	Now time.Time
}

type Result struct {
	Users       int
	Events      int
	Facilities  int
	ParkingLots int
}

// Run seeds inside one transaction. The admin account is skipped when its
// email already exists, and the demo catalog is skipped when any event exists.
func Run(ctx context.Context, ledger repository.Ledger, opts Options) (Result, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var res Result
	err := ledger.WithinTx(ctx, func(tx repository.Repositories) error {
		res = Result{}

		if opts.AdminEmail != "" && opts.AdminPassword != "" {
			created, err := ensureUser(ctx, tx, &models.User{
				Email:        opts.AdminEmail,
				PasswordHash: middleware.HashPassword(opts.AdminPassword),
				FirstName:    "Admin",
				IsStaff:      true,
				IsActive:     true,
			})
			if err != nil {
				return err
			}
			if created {
				res.Users++
			} else {
				slog.Info("Admin user already exists, skipping", "email", opts.AdminEmail)
			}
		}

		if !opts.Demo {
			return nil
		}

		existing, err := tx.Events().List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		if len(existing) > 0 {
			slog.Info("Catalog already seeded, skipping demo data", "events", len(existing))
			return nil
		}

		created, err := ensureUser(ctx, tx, &models.User{
			Email:        "citizen@smartcity.local",
			PasswordHash: middleware.HashPassword("citizen"),
			FirstName:    "Alex",
			Surname:      "Citizen",
			IsActive:     true,
		})
		if err != nil {
			return err
		}
		if created {
			res.Users++
		}

		for _, e := range demoEvents(opts.Now) {
			if err := tx.Events().Create(ctx, &e); err != nil {
				return fmt.Errorf("failed to create event %q: %w", e.Title, err)
			}
			res.Events++
		}
		for _, f := range demoFacilities() {
			if err := tx.Facilities().Create(ctx, &f); err != nil {
				return fmt.Errorf("failed to create facility %q: %w", f.Name, err)
			}
			res.Facilities++
		}
		for _, l := range demoParkingLots() {
			if err := tx.ParkingLots().Create(ctx, &l); err != nil {
				return fmt.Errorf("failed to create parking lot %q: %w", l.Name, err)
			}
			res.ParkingLots++
		}
		return nil
	})
	return res, err
}

func ensureUser(ctx context.Context, tx repository.Repositories, u *models.User) (bool, error) {
	existing, err := tx.Users().GetByEmail(ctx, u.Email)
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return false, nil
	}
	if err := tx.Users().Create(ctx, u); err != nil {
		return false, fmt.Errorf("failed to create user %s: %w", u.Email, err)
	}
	return true, nil
}

func demoEvents(now time.Time) []models.Event {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return []models.Event{
		{
			Title:       "Jazz in the Park",
			Description: "An evening of live jazz on the central lawn.",
			StartsAt:    day.AddDate(0, 0, 7).Add(19 * time.Hour),
			Location:    "Central Park Amphitheatre",
			Price:       "0.00",
		},
		{
			Title:       "Farmers Market",
			Description: "Local produce, street food and crafts.",
			StartsAt:    day.AddDate(0, 0, 3).Add(9 * time.Hour),
			Location:    "Old Town Square",
			Price:       "0.00",
		},
		{
			Title:       "City Marathon Expo",
			Description: "Runner registration, gear and talks ahead of race day.",
			StartsAt:    day.AddDate(0, 0, 14).Add(10 * time.Hour),
			Location:    "Convention Center Hall B",
			Price:       "15.00",
		},
	}
}

func demoFacilities() []models.Facility {
	return []models.Facility{
		{Name: "Gym A", Description: "Weights and cardio floor.", Location: "Sports Center, Level 1", Capacity: 30, Price: "10.00"},
		{Name: "Tennis Court 1", Description: "Outdoor hard court.", Location: "Riverside Park", Capacity: 4, Price: "20.00"},
		{Name: "Community Hall", Description: "Hall for meetings and workshops.", Location: "Civic Center", Capacity: 120, Price: "50.00"},
	}
}

func demoParkingLots() []models.ParkingLot {
	return []models.ParkingLot{
		{Name: "City Hall Garage", Location: "12 Main St", TotalCapacity: 40, RatePerHour: "2.50"},
		{Name: "Stadium Lot", Location: "Stadium Rd", TotalCapacity: 200, RatePerHour: "1.50"},
		{Name: "Library Deck", Location: "5 Book Ln", TotalCapacity: 2, RatePerHour: "3.00"},
	}
}
