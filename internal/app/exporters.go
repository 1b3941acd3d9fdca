package app

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/klabast/wb-services/recycle-kalender/internal/recycleapp"
)

// AlarmTrigger fires one day before the start of an all-day event.
const AlarmTrigger = "-P1D"

// RenderOptions controls the calendar document produced by RenderICS.
type RenderOptions struct {
	Name          string
	Timezone      string
	Notifications bool
	// UIDScope keeps event UIDs stable per address across feed refreshes.
	UIDScope string
	Stamp    time.Time
}

// RenderICS builds a self-contained iCalendar document with one transparent
// all-day event per entry and, when notifications are on, one alarm per event.
func RenderICS(entries []recycleapp.ScheduleEntry, opts RenderOptions) []byte {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ics.NewCalendar()
	cal.SetProductId(ICSProductID)
	cal.SetMethod(ics.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	for _, entry := range entries {
		event := cal.AddEvent(eventUID(opts.UIDScope, entry))
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(entry.Date)
		event.SetAllDayEndAt(entry.Date.AddDate(0, 0, 1))
		event.SetSummary(entry.Fraction)
		event.SetDescription(entry.Label)
		event.SetProperty(ics.ComponentPropertyTransp, "TRANSPARENT")

		if opts.Notifications {
			alarm := event.AddAlarm()
			alarm.SetAction(ics.ActionDisplay)
			alarm.SetTrigger(AlarmTrigger)
			alarm.SetSummary(entry.Fraction)
			alarm.SetDescription(entry.Fraction)
		}
	}

	return []byte(cal.Serialize())
}

func eventUID(scope string, entry recycleapp.ScheduleEntry) string {
	name := strings.Join([]string{scope, entry.Date.Format(recycleapp.DateLayout), entry.Fraction}, "/")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String() + "@" + ICSUIDDomain
}

// WriteICS sends a rendered calendar. Subscriptions are served inline; downloads
// carry an attachment header.
func WriteICS(c *gin.Context, body []byte, filename string, attachment bool) {
	if attachment {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.ics", filename))
	}
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}

// GenerateCSV writes the schedule as CSV
func GenerateCSV(c *gin.Context, filename string, entries []recycleapp.ScheduleEntry) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	rows := [][]string{{"date", "label", "fraction", "color"}}
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.Date.Format(recycleapp.DateLayout),
			entry.Label,
			entry.Fraction,
			entry.Color,
		})
	}
	if err := w.WriteAll(rows); err != nil {
		log.WithError(err).Warn("Error writing CSV export")
	}
}

type exportEntry struct {
	Date     string `json:"date"`
	Label    string `json:"label"`
	Fraction string `json:"fraction"`
	Color    string `json:"color"`
}

type exportSchedule struct {
	PostalCode   string        `json:"postalcode"`
	StreetName   string        `json:"streetname"`
	HouseNumber  string        `json:"housenumber"`
	Municipality string        `json:"municipality"`
	FromDate     string        `json:"fromdate"`
	UntilDate    string        `json:"untildate"`
	Events       []exportEntry `json:"events"`
}

// GenerateJSON writes the schedule as a JSON document
func GenerateJSON(c *gin.Context, filename string, schedule *Schedule) {
	export := exportSchedule{
		PostalCode:   schedule.Address.PostalCodeString(),
		StreetName:   schedule.Address.StreetName,
		HouseNumber:  schedule.Address.HouseNumber,
		Municipality: schedule.Resolved.MunicipalityName,
		FromDate:     schedule.Window.FromString(),
		UntilDate:    schedule.Window.UntilString(),
		Events:       make([]exportEntry, 0, len(schedule.Entries)),
	}
	for _, entry := range schedule.Entries {
		export.Events = append(export.Events, exportEntry{
			Date:     entry.Date.Format(recycleapp.DateLayout),
			Label:    entry.Label,
			Fraction: entry.Fraction,
			Color:    entry.Color,
		})
	}

	body, err := json.Marshal(export)
	if err != nil {
		log.WithError(err).Error("Error encoding JSON export")
		c.String(http.StatusInternalServerError, ErrFailedToGenerateJSON)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", filename))
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
