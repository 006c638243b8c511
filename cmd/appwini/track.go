package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"appwini/internal/apiclient"
	"appwini/internal/geo"
	"appwini/internal/tracking"
)

func describeView(v tracking.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", v.State, v.Status)
	if v.Driver != nil {
		fmt.Fprintf(&b, ", driver %s", v.Driver.Label())
	}
	if v.ETAMinutes != nil {
		fmt.Fprintf(&b, ", eta %d min", *v.ETAMinutes)
	}
	if v.Position != nil {
		fmt.Fprintf(&b, ", at %.5f,%.5f", v.Position.Lat, v.Position.Lng)
	}
	return b.String()
}

func trackCmd(a *app) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "track ORDER_ID",
		Short: "Follow an order's delivery",
		Long: `Polls the order's shipment and prints every change. A driver is
requested automatically the first time the order has none. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if once {
				sh, err := a.tracking().Fetch(cmd.Context(), args[0], a.cfg.TrackPoints)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, describeView(tracking.Derive(sh)))
				return nil
			}

			var last string
			t := tracking.NewTracker(a.tracking(), args[0],
				tracking.WithInterval(a.cfg.PollInterval),
				tracking.WithMaxBackoff(a.cfg.MaxBackoff),
				tracking.WithLimit(a.cfg.TrackPoints),
				tracking.WithLogger(a.log),
				tracking.OnUpdate(func(s tracking.Snapshot) {
					line := describeView(s.View)
					if s.AssignErr != nil {
						line += " (driver request failed: " + describe(s.AssignErr) + ")"
					}
					if s.Err != nil {
						fmt.Fprintf(out, "update failed: %s, retrying in %s\n", describe(s.Err), s.Next)
						return
					}
					if line != last {
						fmt.Fprintln(out, s.UpdatedAt.Format(time.TimeOnly), line)
						last = line
					}
				}),
			)
			err := t.Run(cmd.Context())
			if cmd.Context().Err() != nil {
				if s := t.Snapshot(); !s.UpdatedAt.IsZero() {
					fmt.Fprintln(out, "stopped, last seen:", describeView(s.View))
				}
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "print the current state and exit")
	return cmd
}

func parseLatLng(s string) (geo.LatLng, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return geo.LatLng{}, apiclient.Invalid("coordinates", "use LAT,LNG")
	}
	var p geo.LatLng
	var err1, err2 error
	p.Lat, err1 = strconv.ParseFloat(strings.TrimSpace(lat), 64)
	p.Lng, err2 = strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err1 != nil || err2 != nil {
		return geo.LatLng{}, apiclient.Invalid("coordinates", "coordinates must be numbers")
	}
	return p, nil
}

func printSuggestions(out io.Writer, list []geo.Suggestion) {
	if len(list) == 0 {
		fmt.Fprintln(out, "  no matches")
		return
	}
	for i, s := range list {
		fmt.Fprintf(out, "  %d. %s\n", i+1, s.Description)
	}
}

func geoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geo",
		Short: "Address lookups",
	}

	var limit int
	search := &cobra.Command{
		Use:   "search QUERY",
		Short: "Autocomplete an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.geo().Autocomplete(cmd.Context(), args[0], a.cfg.Country, limit)
			if err != nil {
				return err
			}
			printSuggestions(cmd.OutOrStdout(), list)
			return nil
		},
	}
	search.Flags().IntVar(&limit, "limit", 5, "maximum suggestions")

	// interactive reads one query per line and runs it through the
	// debounced autocompleter, as a search box would.
	interactive := &cobra.Command{
		Use:   "interactive",
		Short: "Type queries line by line and pick a suggestion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			results := make(chan geo.Result, 1)
			ac := geo.NewAutocompleter(a.geo(), func(r geo.Result) {
				select {
				case results <- r:
				default:
				}
			}, geo.WithCountry(a.cfg.Country), geo.WithLogger(a.log))
			defer ac.Close()

			var shown []geo.Suggestion
			sc := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprintln(out, "type an address, or a number to pick a suggestion")
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(shown) {
					s := ac.Select(cmd.Context(), shown[n-1])
					fmt.Fprintf(out, "picked %s (%s)\n", s.Description, s.City)
					if s.Latitude != nil && s.Longitude != nil {
						fmt.Fprintf(out, "  at %.5f,%.5f\n", *s.Latitude, *s.Longitude)
					}
					shown = nil
					continue
				}
				select {
				case <-results:
				default:
				}
				ac.Input(line)
				select {
				case r := <-results:
					if r.Err != nil {
						fmt.Fprintln(out, "  lookup failed:", describe(r.Err))
					}
					shown = r.Suggestions
					printSuggestions(out, shown)
				case <-time.After(a.cfg.Timeout + geo.DefaultDelay):
					fmt.Fprintln(out, "  no answer")
				case <-cmd.Context().Done():
					return nil
				}
			}
			return sc.Err()
		},
	}

	var q geo.GeocodeQuery
	var at string
	geocode := &cobra.Command{
		Use:   "geocode",
		Short: "Resolve a place id, text or coordinates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if at != "" {
				p, err := parseLatLng(at)
				if err != nil {
					return err
				}
				q.Lat, q.Lng = &p.Lat, &p.Lng
			}
			p, err := a.geo().Geocode(cmd.Context(), q)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]\n", p.FormattedAddress, p.PlaceID)
			if p.Latitude != nil && p.Longitude != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  at %.5f,%.5f\n", *p.Latitude, *p.Longitude)
			}
			return nil
		},
	}
	geocode.Flags().StringVar(&q.PlaceID, "place", "", "place id")
	geocode.Flags().StringVar(&q.Q, "q", "", "free text")
	geocode.Flags().StringVar(&at, "at", "", "coordinates as LAT,LNG (write --at=-0.2,-78.5)")

	var check geo.AddressCheck
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check that an address can be delivered to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := a.geo().ValidateAddress(cmd.Context(), check)
			if err != nil {
				return err
			}
			if !v.Valid {
				fmt.Fprintln(cmd.OutOrStdout(), "invalid:", v.Message)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok:", v.FormattedAddress)
			return nil
		},
	}
	validate.Flags().StringVar(&check.MainAddress, "main", "", "main street and number")
	validate.Flags().StringVar(&check.SecondStreet, "cross", "", "cross street")
	validate.Flags().StringVar(&check.City, "city", "", "city")

	route := &cobra.Command{
		Use:     "route FROM TO",
		Short:   "Estimate distance and time between LAT,LNG pairs",
		Example: "  appwini geo route -- -0.1807,-78.4678 -0.2006,-78.4918",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseLatLng(args[0])
			if err != nil {
				return err
			}
			to, err := parseLatLng(args[1])
			if err != nil {
				return err
			}
			r, err := a.geo().EstimateRoute(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f km, about %d min\n", r.DistanceKm, r.DurationMinutes)
			return nil
		},
	}

	cmd.AddCommand(search, interactive, geocode, validate, route)
	return cmd
}
