package app

import (
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/klabast/wb-services/recycle-kalender/internal/audit"
	"github.com/klabast/wb-services/recycle-kalender/internal/geo"
	"github.com/klabast/wb-services/recycle-kalender/internal/recycleapp"
	"github.com/klabast/wb-services/recycle-kalender/internal/upstream"
)

const (
	indexTemplate = "index.html"
	infoTemplate  = "info.html"
)

// Server holds the request handlers and their collaborators.
type Server struct {
	cfg      Configuration
	pipeline *Pipeline
	audit    audit.Reader
	auth     *Authenticator
}

func NewServer(cfg Configuration, pipeline *Pipeline, reader audit.Reader, auth *Authenticator) *Server {
	return &Server{cfg: cfg, pipeline: pipeline, audit: reader, auth: auth}
}

// NewRouter registers all routes. tmpl must define index.html and info.html;
// static may be nil.
func NewRouter(s *Server, tmpl *template.Template, static fs.FS) *gin.Engine {
	r := gin.New()
	r.Use(gin.ErrorLogger())
	r.Use(gin.Recovery())
	r.SetHTMLTemplate(tmpl)

	r.GET("/", s.HandleIndex)
	r.POST("/", s.HandleIndex)
	r.GET("/download", s.HandleDownload)
	r.GET("/info", s.HandleInfo)

	if s.auth != nil && s.audit != nil {
		r.GET("/admin/audit", s.auth.RequireAuth(), s.HandleAuditLog)
	}
	if static != nil {
		r.StaticFS("/static", http.FS(static))
	}
	return r
}

// HandleIndex serves the form, the schedule view and the inline feed
func (s *Server) HandleIndex(c *gin.Context) {
	var q ScheduleQuery
	if err := c.ShouldBind(&q); err != nil {
		log.WithError(err).Warn("Failed to parse request parameters")
		c.String(http.StatusBadRequest, ErrMissingAddress)
		return
	}

	if !HasScheduleRequest(q) {
		c.HTML(http.StatusOK, indexTemplate, PageData{Query: q})
		return
	}

	format := DetectFormat(q)
	schedule, err := s.schedule(c, q, format)
	if err != nil {
		status, message := describeError(err)
		if format == audit.FormatWeb || format == audit.FormatUndefined {
			c.HTML(status, indexTemplate, PageData{Query: q, Error: message})
		} else {
			c.String(status, message)
		}
		return
	}

	switch format {
	case audit.FormatICS:
		WriteICS(c, s.render(q, schedule), feedFilename(schedule.Address), false)
	case audit.FormatCSV:
		GenerateCSV(c, feedFilename(schedule.Address), schedule.Entries)
	case audit.FormatJSON:
		GenerateJSON(c, feedFilename(schedule.Address), schedule)
	default:
		c.HTML(http.StatusOK, indexTemplate, PageData{
			Query: q,
			Info: &PickupInfo{
				PostalCode:   schedule.Address.PostalCodeString(),
				StreetName:   schedule.Address.StreetName,
				HouseNumber:  schedule.Address.HouseNumber,
				Municipality: schedule.Resolved.MunicipalityName,
				FromDate:     schedule.Window.FromString(),
				UntilDate:    schedule.Window.UntilString(),
			},
			Entries:                 schedule.Entries,
			ICSURL:                  feedURL(c, q, false),
			ICSURLWithNotifications: feedURL(c, q, true),
		})
	}
}

// HandleDownload returns the calendar feed as an attachment
func (s *Server) HandleDownload(c *gin.Context) {
	var q ScheduleQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.String(http.StatusBadRequest, ErrMissingAddress)
		return
	}
	if q.Format != "" && q.Format != string(audit.FormatICS) {
		c.String(http.StatusBadRequest, ErrInvalidFormat)
		return
	}
	q.Format = string(audit.FormatICS)

	schedule, err := s.schedule(c, q, audit.FormatICS)
	if err != nil {
		status, message := describeError(err)
		c.String(status, message)
		return
	}
	WriteICS(c, s.render(q, schedule), feedFilename(schedule.Address), true)
}

// HandleInfo serves the info page
func (s *Server) HandleInfo(c *gin.Context) {
	c.HTML(http.StatusOK, infoTemplate, nil)
}

// HandleAuditLog returns the most recent audit records
// Query param: limit (optional, defaults to AuditPageSize)
func (s *Server) HandleAuditLog(c *gin.Context) {
	limit := AuditPageSize
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = min(n, 10*AuditPageSize)
	}

	records, err := s.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		log.WithError(err).Error("Failed to read audit records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": ErrInternalServer})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) schedule(c *gin.Context, q ScheduleQuery, format audit.Format) (*Schedule, error) {
	addr, err := geo.ParseAddress(q.PostalCode, q.StreetName, q.HouseNumber)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Schedule(c.Request.Context(), addr, format)
}

func (s *Server) render(q ScheduleQuery, schedule *Schedule) []byte {
	notifications := s.cfg.Calendar.Notifications
	if q.Notifications != "" {
		notifications = IsTruthy(q.Notifications)
	}
	timezone := s.cfg.Calendar.Timezone
	if q.Timezone != "" {
		if _, err := time.LoadLocation(q.Timezone); err == nil {
			timezone = q.Timezone
		} else {
			log.WithField("timezone", q.Timezone).Debug("Ignoring unknown timezone override")
		}
	}

	return RenderICS(schedule.Entries, RenderOptions{
		Name:          "Ophaalkalender " + schedule.Resolved.MunicipalityName,
		Timezone:      timezone,
		Notifications: notifications,
		UIDScope:      feedFilename(schedule.Address),
	})
}

// describeError is the one place that maps pipeline failures to a status code
// and the message shown to the user.
func describeError(err error) (int, string) {
	var auditErr *audit.Error
	var warning *geo.AddressWarning
	var httpErr *upstream.HTTPError

	switch {
	case errors.As(err, &auditErr):
		log.WithError(err).Error("Audit sink unavailable")
		return http.StatusInternalServerError, ErrAuditUnavailable
	case errors.Is(err, geo.ErrInvalidAddress):
		return http.StatusBadRequest, ErrMissingAddress
	case errors.Is(err, geo.ErrUnsupportedRegion):
		return http.StatusUnprocessableEntity, ErrUnsupportedRegion
	case errors.As(err, &warning):
		return http.StatusUnprocessableEntity, warning.Message
	case errors.Is(err, recycleapp.ErrExtractionFailed), errors.Is(err, recycleapp.ErrTokenFetchFailed):
		log.WithError(err).Warn("Could not obtain recycleapp access")
		return http.StatusBadGateway, ErrProcessing
	case errors.As(err, &httpErr):
		log.WithError(err).Warn("Upstream request failed")
		return http.StatusBadGateway, httpErr.Message()
	default:
		log.WithError(err).Error("Schedule request failed")
		return http.StatusBadGateway, ErrProcessing
	}
}
