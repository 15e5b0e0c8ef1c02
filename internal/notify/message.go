// Package notify builds reservation confirmation messages and delivers them.
package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"smarthub/internal/models"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a confirmation addressed to one recipient.
type Message struct {
	To         string
	Subject    string
	Text       string
	HTML       string
	Attachment *Attachment
}

const signature = "The Smart City Team"

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.New("notify").Parse(`
{{define "event"}}<html>
  <body>
    <h3>Hello,</h3>
    <p>Thank you for registering for the event: <strong>{{.Title}}</strong>.</p>
    <p>Your unique registration ID is: {{.ID}}</p>
    <p>Please present this QR code at the event entrance for check-in.</p>
    <img src="{{.QR}}" alt="Your QR Code">
    <p>We look forward to seeing you there!</p>
    <p>Best,<br>{{.Signature}}</p>
  </body>
</html>{{end}}
{{define "facility"}}<html>
  <body>
    <h3>Booking Confirmed!</h3>
    <p>You have successfully booked: <strong>{{.Title}}</strong>.</p>
    <ul>
      <li><strong>Date:</strong> {{.Date}}</li>
      <li><strong>Time Slot:</strong> {{.Slot}}</li>
      <li><strong>Booking ID:</strong> {{.ID}}</li>
    </ul>
    <p>Please show this QR code at the facility entrance during your time slot.</p>
    <img src="{{.QR}}" alt="Booking QR Code">
    <p>Best,<br>{{.Signature}}</p>
  </body>
</html>{{end}}
{{define "parking"}}<html>
  <body>
    <h3>Parking Spot Reserved!</h3>
    <p>You have successfully reserved a spot at: <strong>{{.Title}}</strong>.</p>
    <ul>
      <li><strong>Vehicle Number:</strong> {{.Vehicle}}</li>
      <li><strong>Arrival Time:</strong> {{.Arrival}}</li>
      <li><strong>Booking ID:</strong> {{.ID}}</li>
    </ul>
    <p>Please scan this QR code at the gate to enter.</p>
    <img src="{{.QR}}" alt="Parking QR Code">
    <p>Drive safe,<br>{{.Signature}}</p>
  </body>
</html>{{end}}`))

	textTemplates = texttemplate.Must(texttemplate.New("notify").Parse(`
{{define "event"}}Hello,
Thank you for registering for the event: {{.Title}}.
Your unique registration ID is: {{.ID}}
Please present the attached QR code at the event entrance for check-in.
We look forward to seeing you there!
Best,
{{.Signature}}
{{end}}
{{define "facility"}}Booking Confirmed for {{.Title}}.
Date: {{.Date}}
Time: {{.Slot}}
Booking ID: {{.ID}}
Please present the attached QR code at the entrance.
{{end}}
{{define "parking"}}Parking Reserved at {{.Title}}.
Vehicle: {{.Vehicle}}
Arrival: {{.Arrival}}
Booking ID: {{.ID}}
Please scan the attached QR code at the gate.
{{end}}`))
)

type templateData struct {
	Title     string
	ID        string
	Date      string
	Slot      string
	Vehicle   string
	Arrival   string
	QR        htmltemplate.URL
	Signature string
}

// EventConfirmation is sent after an event registration.
func EventConfirmation(to string, event *models.Event, reg *models.Registration, qr []byte) (*Message, error) {
	data := templateData{Title: event.Title, ID: reg.ID.String()}
	return build("event", to,
		fmt.Sprintf("Your Registration Confirmation for %s", event.Title),
		fmt.Sprintf("registration_qr_%s.png", reg.ID), data, qr)
}

// FacilityConfirmation is sent after a facility booking.
func FacilityConfirmation(to string, facility *models.Facility, b *models.Booking, qr []byte) (*Message, error) {
	data := templateData{
		Title: facility.Name,
		ID:    fmt.Sprint(b.ID),
		Date:  b.BookingDate.String(),
		Slot:  b.TimeSlot.Label(),
	}
	return build("facility", to,
		fmt.Sprintf("Booking Confirmation: %s", facility.Name),
		fmt.Sprintf("booking_qr_%d.png", b.ID), data, qr)
}

// ParkingConfirmation is sent after a parking reservation.
func ParkingConfirmation(to string, lot *models.ParkingLot, b *models.ParkingBooking, qr []byte) (*Message, error) {
	data := templateData{
		Title:   lot.Name,
		ID:      fmt.Sprint(b.ID),
		Vehicle: b.VehicleNumber,
		Arrival: b.StartTime.Format("2006-01-02 15:04"),
	}
	return build("parking", to,
		fmt.Sprintf("Parking Reserved: %s", lot.Name),
		fmt.Sprintf("parking_qr_%d.png", b.ID), data, qr)
}

func build(kind, to, subject, filename string, data templateData, qr []byte) (*Message, error) {
	data.Signature = signature
	data.QR = htmltemplate.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(qr))

	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, kind, data); err != nil {
		return nil, fmt.Errorf("render %s text: %w", kind, err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, kind, data); err != nil {
		return nil, fmt.Errorf("render %s html: %w", kind, err)
	}

	return &Message{
		To:      to,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
		Attachment: &Attachment{
			Filename:    filename,
			ContentType: "image/png",
			Data:        qr,
		},
	}, nil
}
