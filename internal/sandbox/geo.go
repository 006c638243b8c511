package sandbox

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

const avgSpeedKmh = 25.0

type place struct {
	PlaceID       string  `json:"place_id"`
	Description   string  `json:"description"`
	MainText      string  `json:"main_text"`
	SecondaryText string  `json:"secondary_text"`
	City          string  `json:"city"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

var places = []place{
	{"pl-uio-amazonas", "Av. Amazonas N24-03, Quito", "Av. Amazonas N24-03", "Quito, Ecuador", "Quito", -0.2006, -78.4918},
	{"pl-uio-colon", "Av. Cristobal Colon E6-12, Quito", "Av. Cristobal Colon E6-12", "Quito, Ecuador", "Quito", -0.2010, -78.4880},
	{"pl-uio-shyris", "Av. de los Shyris N35-17, Quito", "Av. de los Shyris N35-17", "Quito, Ecuador", "Quito", -0.1765, -78.4794},
	{"pl-uio-amazonas-naciones", "Av. Amazonas y Naciones Unidas, Quito", "Av. Amazonas y Naciones Unidas", "Quito, Ecuador", "Quito", -0.1762, -78.4847},
	{"pl-cue-larga", "Calle Larga 7-45, Cuenca", "Calle Larga 7-45", "Cuenca, Ecuador", "Cuenca", -2.8994, -79.0045},
	{"pl-gye-malecon", "Malecon Simon Bolivar, Guayaquil", "Malecon Simon Bolivar", "Guayaquil, Ecuador", "Guayaquil", -2.1962, -79.8862},
}

func matchPlaces(q string) []place {
	q = strings.ToLower(strings.TrimSpace(q))
	var out []place
	for _, p := range places {
		if q != "" && strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) autocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if len(strings.TrimSpace(q.Get("q"))) < 3 {
		writeFieldError(w, "q", "Enter at least 3 characters.")
		return
	}
	limit := 5
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	items := []place{}
	if c := strings.ToLower(q.Get("country")); c == "" || c == "ec" {
		items = append(items, matchPlaces(q.Get("q"))...)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) geocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("place_id") != "":
		for _, p := range places {
			if p.PlaceID == q.Get("place_id") {
				writeJSON(w, http.StatusOK, geocodeResult(p))
				return
			}
		}
	case q.Get("q") != "":
		if m := matchPlaces(q.Get("q")); len(m) > 0 {
			writeJSON(w, http.StatusOK, geocodeResult(m[0]))
			return
		}
	case q.Get("lat") != "" && q.Get("lng") != "":
		lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
		lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "lat and lng must be numbers")
			return
		}
		best, bestKm := places[0], math.Inf(1)
		for _, p := range places {
			if d := haversineKm(lat, lng, p.Latitude, p.Longitude); d < bestKm {
				best, bestKm = p, d
			}
		}
		writeJSON(w, http.StatusOK, geocodeResult(best))
		return
	default:
		writeError(w, http.StatusBadRequest, "place_id, q or lat/lng is required")
		return
	}
	writeError(w, http.StatusNotFound, "no results")
}

func geocodeResult(p place) map[string]any {
	return map[string]any{
		"place_id":          p.PlaceID,
		"formatted_address": p.Description,
		"main_address":      p.MainText,
		"city":              p.City,
		"latitude":          p.Latitude,
		"longitude":         p.Longitude,
	}
}

func (s *Server) validateAddress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MainAddress string `json:"main_address"`
		City        string `json:"city"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	resp := map[string]any{"valid": false}
	if strings.TrimSpace(req.MainAddress) == "" || strings.TrimSpace(req.City) == "" {
		resp["message"] = "main address and city are required"
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp["valid"] = true
	resp["formatted_address"] = strings.TrimSpace(req.MainAddress) + ", " + strings.TrimSpace(req.City)
	for _, p := range matchPlaces(req.MainAddress) {
		if strings.EqualFold(p.City, strings.TrimSpace(req.City)) {
			resp["formatted_address"] = p.Description
			resp["latitude"] = p.Latitude
			resp["longitude"] = p.Longitude
			break
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type latLng struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (s *Server) estimateRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Origin      latLng `json:"origin"`
		Destination latLng `json:"destination"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Origin.Lat == nil || req.Origin.Lng == nil || req.Destination.Lat == nil || req.Destination.Lng == nil {
		writeError(w, http.StatusBadRequest, "origin and destination coordinates are required")
		return
	}
	km := haversineKm(*req.Origin.Lat, *req.Origin.Lng, *req.Destination.Lat, *req.Destination.Lng)
	writeJSON(w, http.StatusOK, map[string]any{
		"distance_km":      math.Round(km*100) / 100,
		"duration_minutes": int(math.Ceil(km / avgSpeedKmh * 60)),
	})
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthKm = 6371.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthKm * math.Asin(math.Sqrt(a))
}
