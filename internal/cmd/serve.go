package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/calendar"
	"github.com/MeKo-Tech/capstripeviz/internal/viewport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tiles and a frame/stats API backed by the in-memory fetch simulator",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Int("container-width", 1024, "Viewport container width in pixels")
	serveCmd.Flags().Int64("seed", 1, "Deterministic seed for the fetch simulator")
	serveCmd.Flags().Float64("failure-rate", 0, "Simulated upstream failure probability in [0,1]")

	mustBind := func(key, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
	mustBind("serve.addr", "addr")
	mustBind("serve.container_width", "container-width")
	mustBind("fetchsim.seed", "seed")
	mustBind("fetchsim.failure_rate", "failure-rate")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	containerWidth := viper.GetInt("serve.container_width")
	if containerWidth <= 0 {
		containerWidth = 1024
	}

	eng := buildEngine(containerWidth)
	defer eng.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/tile", withCORS(func(w http.ResponseWriter, r *http.Request) {
		facility := r.URL.Query().Get("facility")
		year, err := strconv.Atoi(r.URL.Query().Get("year"))
		if facility == "" || err != nil {
			http.Error(w, "facility and year query params are required", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		tile, err := eng.GetTile(ctx, facility, year)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		img := &image.NRGBA{
			Pix:    tile.Pixels,
			Stride: tile.Width * 4,
			Rect:   image.Rect(0, 0, tile.Width, tile.Height),
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := png.Encode(w, img); err != nil {
			logger.Error("encoding tile PNG", "error", err)
		}
	}))

	mux.HandleFunc("/api/frame", withCORS(func(w http.ResponseWriter, r *http.Request) {
		facilityIDs := r.URL.Query()["facility"]
		if len(facilityIDs) == 0 {
			facilityIDs = []string{"alinta-solar", "bremer-wind", "carrow-peaker"}
		}
		facilities := make([]viewport.FacilityRow, len(facilityIDs))
		for i, id := range facilityIDs {
			facilities[i] = viewport.FacilityRow{FacilityID: id, DisplayHeightPx: 20}
		}

		frame := eng.Composite(facilities, containerWidth, calendar.Yesterday())

		type rowSummary struct {
			FacilityID string `json:"facility_id"`
			Width      int    `json:"width"`
			Height     int    `json:"height"`
		}
		resp := struct {
			ContainerWidthPx int          `json:"container_width_px"`
			MarkerX          int          `json:"marker_x"`
			Rows             []rowSummary `json:"rows"`
		}{ContainerWidthPx: frame.ContainerWidthPx, MarkerX: frame.MarkerX}
		for _, row := range frame.Rows {
			resp.Rows = append(resp.Rows, rowSummary{FacilityID: row.FacilityID, Width: row.Width, Height: row.Height})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))

	mux.HandleFunc("/api/stats", withCORS(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(eng.Stats().String()))
	}))

	logger.Info("capstripe demo server listening", "addr", addr, "container_width_px", containerWidth)
	fmt.Printf("\n  -> http://%s/api/stats\n\n", addr)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}

func withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}
