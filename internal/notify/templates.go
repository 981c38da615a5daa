package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

var reminderTmpl = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html><body>
<p>Hi {{.Name}},</p>
<p>You have not booked a parking spot today. Don't forget to reserve one if you need it.</p>
</body></html>`))

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"money": Money,
}).Parse(`<!DOCTYPE html>
<html><body>
<h2>Your parking activity for {{.Month}}</h2>
<p>Hi {{.Name}},</p>
<table>
<tr><td>Total bookings</td><td>{{.TotalBookings}}</td></tr>
<tr><td>Total spent</td><td>{{money .TotalCents}}</td></tr>
<tr><td>Hours parked</td><td>{{printf "%.2f" .TotalHours}}</td></tr>
<tr><td>Most used lot</td><td>{{if .MostUsedLot}}{{.MostUsedLot}}{{else}}N/A{{end}}</td></tr>
</table>
{{if .Bookings}}
<h3>Bookings</h3>
<table>
<tr><th>#</th><th>Lot</th><th>Spot</th><th>Date</th><th>Cost</th></tr>
{{range .Bookings}}<tr><td>{{.ID}}</td><td>{{.LotName}}</td><td>{{.SpotID}}</td><td>{{.Date}}</td><td>{{money .CostCents}}</td></tr>
{{end}}</table>
{{end}}
</body></html>`))

// ReminderData feeds the daily reminder.
type ReminderData struct {
	Name string
}

// ReportBooking is one row of the monthly report.
type ReportBooking struct {
	ID        uint64
	LotName   string
	SpotID    uint64
	Date      string
	CostCents int64
}

// ReportData feeds the monthly activity report.
type ReportData struct {
	Name          string
	Month         string
	TotalBookings int
	TotalCents    int64
	TotalHours    float64
	MostUsedLot   string
	Bookings      []ReportBooking
}

// Money formats cents as a decimal amount.
func Money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func RenderReminder(d ReminderData) (string, error) {
	return render(reminderTmpl, d)
}

func RenderMonthlyReport(d ReportData) (string, error) {
	return render(reportTmpl, d)
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
