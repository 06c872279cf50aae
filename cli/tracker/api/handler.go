package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/daniil11ru/volovo/cli/tracker/domain"
	"github.com/daniil11ru/volovo/cli/tracker/export"
	"github.com/daniil11ru/volovo/cli/tracker/repository"
	"github.com/daniil11ru/volovo/cli/tracker/track"
)

type Handler struct {
	Repository   *repository.Primary
	Report       *domain.Report
	TemplatePath string
}

func NewHandler(repository *repository.Primary, report *domain.Report, templatePath string) *Handler {
	return &Handler{Repository: repository, Report: report, TemplatePath: templatePath}
}

func (h *Handler) PointsSummary(c *gin.Context) {
	oid, ok := queryOID(c)
	if !ok {
		return
	}
	from, to, ok := queryPeriod(c)
	if !ok {
		return
	}

	cfg := h.Report.FilterDefaults()
	if v, ok := queryFloat(c, "max_jump_km", cfg.MaxJumpKm, 0.0, 50.0); ok {
		cfg.MaxJumpKm = v
	} else {
		return
	}
	if v, ok := queryFloat(c, "max_speed_kmh", cfg.MaxSpeedKmh, 1.0, 400.0); ok {
		cfg.MaxSpeedKmh = v
	} else {
		return
	}

	summary, err := h.Report.Summarize(oid, from, to, cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) TripsForMap(c *gin.Context) {
	oid, ok := queryOID(c)
	if !ok {
		return
	}
	from, to, ok := queryPeriod(c)
	if !ok {
		return
	}

	maxPoints := 4000
	if v, ok := queryInt(c, "max_points", maxPoints, 200, 20000); ok {
		maxPoints = v
	} else {
		return
	}

	minTripKm := 0.0
	if v, ok := queryFloat(c, "min_trip_km", minTripKm, 0.0, 1000.0); ok {
		minTripKm = v
	} else {
		return
	}

	result, err := h.Report.TripsForMap(oid, from, to, h.Report.FilterDefaults(), maxPoints, minTripKm)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetOIDs(c *gin.Context) {
	limit := 500
	if v, ok := queryInt(c, "limit", limit, 1, 5000); ok {
		limit = v
	} else {
		return
	}

	oids, err := h.Repository.GetOIDs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"oids": oids})
}

func (h *Handler) GetRoutes(c *gin.Context) {
	routes, err := h.Repository.GetRoutes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"routes": routes})
}

func (h *Handler) SaveForm(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}

	doc := sanitizePayload(raw)

	var oid int32
	if id, err := strconv.Atoi(doc.Meta.OID); err == nil {
		oid = int32(id)
	}

	var dtFrom, dtTo *time.Time
	if t, err := track.ParseTime(doc.Meta.DtFrom); doc.Meta.DtFrom != "" && err == nil {
		dtFrom = &t
	}
	if t, err := track.ParseTime(doc.Meta.DtTo); doc.Meta.DtTo != "" && err == nil {
		dtTo = &t
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	id, err := h.Repository.AddForm(oid, dtFrom, dtTo, payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "form_id": strconv.FormatInt(id, 10)})
}

func (h *Handler) GetForm(c *gin.Context) {
	id, ok := paramFormID(c)
	if !ok {
		return
	}

	form, err := h.Repository.GetForm(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if form == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	out := gin.H{
		"form_id":    strconv.FormatInt(form.ID, 10),
		"created_at": form.CreatedAt.Format("2006-01-02T15:04:05"),
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(form.Payload, &payload); err == nil {
		for k, v := range payload {
			out[k] = v
		}
	}

	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetForms(c *gin.Context) {
	limit := 50
	if v, ok := queryInt(c, "limit", limit, 1, 500); ok {
		limit = v
	} else {
		return
	}

	forms, err := h.Repository.GetForms(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(forms))
	for _, f := range forms {
		meta := gin.H{}
		var payload FormPayload
		if err := json.Unmarshal(f.Payload, &payload); err == nil {
			meta = gin.H{"oid": payload.Meta.OID, "dt_from": payload.Meta.DtFrom, "dt_to": payload.Meta.DtTo}
		}
		out = append(out, gin.H{
			"form_id":    strconv.FormatInt(f.ID, 10),
			"created_at": f.CreatedAt.Format("2006-01-02T15:04:05"),
			"meta":       meta,
		})
	}

	c.JSON(http.StatusOK, gin.H{"forms": out})
}

func (h *Handler) ExportFormXlsx(c *gin.Context) {
	id, ok := paramFormID(c)
	if !ok {
		return
	}

	form, err := h.Repository.GetForm(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if form == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var payload FormPayload
	if err := json.Unmarshal(form.Payload, &payload); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	path, err := export.FillPutevoy(export.Totals{
		KmSpread: payload.Totals.KmSpread,
		TonsSum:  payload.Totals.TonsSum,
		KmGps:    payload.Totals.KmGps,
		Delivery: payload.Totals.Delivery,
		Idle:     payload.Totals.Idle,
	}, h.TemplatePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.FileAttachment(path, fmt.Sprintf("putevoy-%d.xlsx", id))
}

func queryOID(c *gin.Context) (int32, bool) {
	oidStr := c.Query("oid")
	oid, err := strconv.Atoi(oidStr)
	if oidStr == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad oid"})
		return 0, false
	}
	return int32(oid), true
}

func paramFormID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("form_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad form_id"})
		return 0, false
	}
	return id, true
}

func queryPeriod(c *gin.Context) (*time.Time, *time.Time, bool) {
	var from, to *time.Time

	if s := c.Query("dt_from"); s != "" {
		t, err := track.ParseTime(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad dt_from"})
			return nil, nil, false
		}
		from = &t
	}
	if s := c.Query("dt_to"); s != "" {
		t, err := track.ParseTime(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad dt_to"})
			return nil, nil, false
		}
		to = &t
	}

	return from, to, true
}

func queryFloat(c *gin.Context, name string, def, min, max float64) (float64, bool) {
	s := c.Query(name)
	if s == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < min || v > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad " + name})
		return 0, false
	}
	return v, true
}

func queryInt(c *gin.Context, name string, def, min, max int) (int, bool) {
	s := c.Query(name)
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < min || v > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad " + name})
		return 0, false
	}
	return v, true
}
