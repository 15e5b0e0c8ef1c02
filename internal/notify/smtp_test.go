package notify

import (
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTP accepts every message and counts completed DATA transfers.
type fakeSMTP struct {
	ln        net.Listener
	delivered atomic.Int32
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTP{ln: ln}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *fakeSMTP) port() int { return s.ln.Addr().(*net.TCPAddr).Port }

func (s *fakeSMTP) serve(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)
	tp.PrintfLine("220 fake.local ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			tp.PrintfLine("500 empty command")
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "EHLO", "HELO":
			tp.PrintfLine("250 fake.local")
		case "DATA":
			tp.PrintfLine("354 end with <CRLF>.<CRLF>")
			if _, err := tp.ReadDotBytes(); err != nil {
				return
			}
			s.delivered.Add(1)
			tp.PrintfLine("250 queued")
		case "QUIT":
			tp.PrintfLine("221 bye")
			return
		default:
			tp.PrintfLine("250 ok")
		}
	}
}

func newTestSMTPNotifier(t *testing.T, port int) *SMTPNotifier {
	t.Helper()
	n, err := NewSMTPNotifier(Config{
		Driver:  "smtp",
		Host:    "127.0.0.1",
		Port:    port,
		From:    "noreply@smarthub.local",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return n
}

func TestSMTPNotifier_ConcurrentSends(t *testing.T) {
	srv := startFakeSMTP(t)
	n := newTestSMTPNotifier(t, srv.port())

	const sends = 10
	var wg sync.WaitGroup
	errs := make([]error, sends)
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = n.Send(context.Background(), &Message{
				To:      fmt.Sprintf("citizen%d@example.com", i),
				Subject: "Booking confirmed",
				Text:    "See you there.",
				Attachment: &Attachment{
					Filename:    "qr.png",
					ContentType: "image/png",
					Data:        []byte{0x89, 'P', 'N', 'G'},
				},
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "send %d", i)
	}
	assert.Equal(t, int32(sends), srv.delivered.Load())
}

func TestSMTPNotifier_ReportsUnreachableRelay(t *testing.T) {
	srv := startFakeSMTP(t)
	port := srv.port()
	require.NoError(t, srv.ln.Close())

	n := newTestSMTPNotifier(t, port)
	err := n.Send(context.Background(), &Message{To: "citizen@example.com", Subject: "Booking confirmed", Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "citizen@example.com")
}
