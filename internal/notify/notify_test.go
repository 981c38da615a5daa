package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/config"
)

func TestSMTPSender(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	s := NewSMTPSender(config.MailConfig{Host: "mail", Port: 1025, From: "admin@parking.local"})
	s.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	s.sendMail = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, s.Send(context.Background(), "ann@example.com", "Daily Parking Reminder", "<p>hi</p>"))
	assert.Equal(t, "mail:1025", gotAddr)
	assert.Equal(t, []string{"ann@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "To: ann@example.com\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/html")
	assert.Contains(t, gotMsg, "\r\n\r\n<p>hi</p>")
}

func TestSMTPSenderRejectsHeaderInjection(t *testing.T) {
	s := NewSMTPSender(config.MailConfig{Host: "mail", Port: 25})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("unreachable") }
	assert.Error(t, s.Send(context.Background(), "a@b.c\r\nBcc: x@y.z", "s", "b"))
}

func TestRenderMonthlyReport(t *testing.T) {
	html, err := RenderMonthlyReport(ReportData{
		Name:          "Ann <admin>",
		Month:         "February 2025",
		TotalBookings: 2,
		TotalCents:    12345,
		MostUsedLot:   "Central",
		Bookings:      []ReportBooking{{ID: 1, LotName: "Central", SpotID: 4, Date: "2025-02-03", CostCents: 45}},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "February 2025")
	assert.Contains(t, html, "123.45")
	assert.Contains(t, html, "0.45")
	assert.Contains(t, html, "Ann &lt;admin&gt;")
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "0.05", Money(5))
	assert.Equal(t, "12.00", Money(1200))
	assert.Equal(t, "-1.50", Money(-150))
}
