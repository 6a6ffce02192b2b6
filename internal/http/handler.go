package http

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go.ngs.io/tidemodel/internal/adapter/interp"
	"go.ngs.io/tidemodel/internal/domain"
	"go.ngs.io/tidemodel/internal/usecase"
)

// maxQueryPoints bounds one request so a single call cannot monopolize
// the interpolation loop.
const maxQueryPoints = 1000

// Handler handles HTTP requests against one staged tide model.
type Handler struct {
	model *usecase.Model
	log   logrus.FieldLogger
}

// NewHandler creates a new HTTP handler.
func NewHandler(model *usecase.Model, log logrus.FieldLogger) *Handler {
	return &Handler{model: model, log: log}
}

// parseFloats splits a comma-separated query parameter into floats.
func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q", p)
		}
		out[i] = v
	}
	return out, nil
}

// ConstantValue is one constituent sampled at one point.
type ConstantValue struct {
	Name      string  `json:"name"`
	Amplitude float64 `json:"amplitude"`
	Phase     float64 `json:"phase_deg"`
}

// ConstantsPoint is the harmonic constants at one query point.
type ConstantsPoint struct {
	Lat       float64         `json:"lat"`
	Lon       float64         `json:"lon"`
	Depth     *float64        `json:"depth_m,omitempty"`
	Constants []ConstantValue `json:"constants"`
}

// ConstantsResponse is the response for the constants endpoint.
type ConstantsResponse struct {
	Constituents []string         `json:"constituents"`
	Points       []ConstantsPoint `json:"points"`
}

// GetConstants handles GET /v1/tides/constants.
func (h *Handler) GetConstants(c *gin.Context) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon parameters are required"})
		return
	}
	lat, err := parseFloats(latStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid latitude: %v", err)})
		return
	}
	lon, err := parseFloats(lonStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid longitude: %v", err)})
		return
	}
	if len(lat) != len(lon) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon must have the same number of values"})
		return
	}
	if len(lat) > maxQueryPoints {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("too many points (max %d)", maxQueryPoints)})
		return
	}
	for _, v := range lat {
		if v < -90 || v > 90 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "latitude must be between -90 and 90"})
			return
		}
	}

	opts := usecase.InterpolateOptions{}
	if m := c.Query("method"); m != "" {
		opts.Method = interp.Method(m)
	}
	if e := c.Query("extrapolate"); e != "" {
		opts.Extrapolate, err = strconv.ParseBool(e)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid extrapolate flag: %v", err)})
			return
		}
	}
	if cut := c.Query("cutoff"); cut != "" {
		opts.Cutoff, err = strconv.ParseFloat(cut, 64)
		if err != nil || opts.Cutoff < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cutoff"})
			return
		}
	}

	r, err := h.model.Interpolate(lon, lat, opts)
	if err != nil {
		h.log.WithError(err).Warn("interpolation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := ConstantsResponse{
		Constituents: r.Constituents,
		Points:       make([]ConstantsPoint, len(lat)),
	}
	for p := range lat {
		point := ConstantsPoint{Lat: lat[p], Lon: lon[p]}
		if !r.DepthMask[p] && !math.IsNaN(r.Depth[p]) {
			d := r.Depth[p]
			point.Depth = &d
		}
		for ic, name := range r.Constituents {
			if r.Mask[p][ic] {
				continue
			}
			point.Constants = append(point.Constants, ConstantValue{
				Name:      name,
				Amplitude: r.Amplitude[p][ic],
				Phase:     r.Phase[p][ic],
			})
		}
		resp.Points[p] = point
	}
	c.JSON(http.StatusOK, resp)
}

// ConstituentInfo describes one constituent of the staged model.
type ConstituentInfo struct {
	Name          string   `json:"name"`
	SpeedDegPerHr *float64 `json:"speed_deg_per_hr,omitempty"`
}

// GetConstituents handles GET /v1/constituents, listing the staged
// model's constituents in file order. With all=true it lists the full
// standard catalog instead.
func (h *Handler) GetConstituents(c *gin.Context) {
	if c.Query("all") == "true" {
		all := domain.GetAllConstituents()
		response := make([]ConstituentInfo, len(all))
		for i, con := range all {
			speed := con.SpeedDegPerHr
			response[i] = ConstituentInfo{Name: con.Name, SpeedDegPerHr: &speed}
		}
		c.JSON(http.StatusOK, gin.H{
			"constituents": response,
			"count":        len(response),
		})
		return
	}
	names := h.model.Constituents.Names()
	response := make([]ConstituentInfo, len(names))
	for i, name := range names {
		response[i] = ConstituentInfo{Name: name}
		if speed, ok := domain.GetConstituentSpeed(name); ok {
			response[i].SpeedDegPerHr = &speed
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"constituents": response,
		"count":        len(response),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
