// pickupctl is a terminal client for the e-waste pickup platform:
// sign in, submit pickup requests, and review them as an admin,
// without the web UI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/example/ewaste-pickup/internal/bins"
	"github.com/example/ewaste-pickup/internal/geocode"
	"github.com/example/ewaste-pickup/internal/logging"
	"github.com/example/ewaste-pickup/internal/models"
	"github.com/example/ewaste-pickup/internal/requests"
	"github.com/example/ewaste-pickup/internal/route"
	"github.com/example/ewaste-pickup/internal/session"
)

func main() {
	var (
		backend  = flag.String("backend", envOr("BACKEND_BASE_URL", "http://127.0.0.1:8000"), "backend base URL")
		geocoder = flag.String("geocoder", envOr("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"), "geocoder base URL")
		apiKey   = flag.String("api-key", os.Getenv("FIREBASE_API_KEY"), "identity provider API key")
		email    = flag.String("email", "", "account email")
		password = flag.String("password", "", "account password")
		logLevel = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	logger := logging.NewLogger(*logLevel)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	provider := session.NewFirebaseProvider(*apiKey)
	sess := session.New(provider, *backend, logger)
	defer sess.Close()

	if *email != "" {
		if err := sess.Login(ctx, *email, *password); err != nil {
			fatal("login: %v", err)
		}
	}

	app := &app{
		sess:     sess,
		store:    requests.NewStore(*backend, logger),
		ctl:      requests.NewController(*backend, logger),
		resolver: geocode.NewClient(*geocoder),
		bins:     bins.NewClient(*backend, logger),
		routes:   route.NewClient(*backend),
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "whoami":
		err = app.whoami()
	case "submit":
		err = app.submit(ctx, flag.Args()[1:])
	case "requests":
		err = app.listRequests(ctx)
	case "accept":
		err = app.accept(ctx, flag.Args()[1:])
	case "reject":
		err = app.reject(ctx, flag.Args()[1:])
	case "bins":
		err = app.listBins(ctx)
	case "route":
		err = app.planRoute(ctx, flag.Args()[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal("%v", err)
	}
}

type app struct {
	sess     *session.Context
	store    *requests.Store
	ctl      *requests.Controller
	resolver geocode.Resolver
	bins     *bins.Client
	routes   route.Optimizer
}

func (a *app) whoami() error {
	snap := a.sess.Snapshot()
	if snap.User == nil {
		fmt.Println("signed out")
		return nil
	}
	if snap.ProfileErr != nil {
		return fmt.Errorf("profile unresolved: %w", snap.ProfileErr)
	}
	p := snap.Profile
	fmt.Printf("%s (%s) role=%s points=%d\n", p.Name, p.UID, p.Role, p.Points)
	return nil
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	wasteType := fs.String("type", "", "e-waste type")
	contact := fs.String("contact", "", "contact number")
	when := fs.String("when", "", "preferred datetime, e.g. 2025-07-01T10:00")
	imagePath := fs.String("image", "", "path to item photo")
	address := fs.String("address", "", "pickup address (forward-geocoded)")
	fs.Parse(args)

	snap := a.sess.Snapshot()
	if snap.Profile == nil {
		return fmt.Errorf("sign in first (-email/-password)")
	}

	draft := requests.Draft{
		UserID:            snap.Profile.UID,
		EWasteType:        *wasteType,
		ContactNumber:     *contact,
		PreferredDatetime: *when,
	}
	if *imagePath != "" {
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		draft.Image = data
		draft.ImageName = filepath.Base(*imagePath)
	}
	if *address != "" {
		pt, name, ok, err := a.resolver.Resolve(ctx, *address)
		if err != nil {
			return fmt.Errorf("geocode: %w", err)
		}
		if !ok {
			return fmt.Errorf("no match for %q", *address)
		}
		draft.Location = &pt
		draft.AddressText = name
	}

	if err := a.ctl.Create(ctx, &draft); err != nil {
		return err
	}
	fmt.Println("pickup request submitted")
	return nil
}

func (a *app) listRequests(ctx context.Context) error {
	snap := a.sess.Snapshot()
	var list []models.PickupRequest
	var err error
	if snap.Profile != nil && snap.Profile.Role == models.RoleAdmin {
		list, err = a.store.Refresh(ctx)
	} else if snap.Profile != nil {
		list, err = a.store.RefreshForUser(ctx, snap.Profile.UID)
	} else {
		return fmt.Errorf("sign in first (-email/-password)")
	}
	if err != nil {
		return err
	}
	for _, r := range list {
		d := models.DisplayFor(r.Status)
		line := fmt.Sprintf("%s  %-16s  %s", r.ID, d.Label, r.EWasteType)
		if pt, ok := r.Location(); ok {
			line += fmt.Sprintf("  (%.4f, %.4f)", pt.Lat, pt.Lng)
		}
		fmt.Println(line)
	}
	return nil
}

func (a *app) accept(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("accept", flag.ExitOnError)
	id := fs.String("id", "", "request id")
	points := fs.Int("points", 0, "points to award")
	fs.Parse(args)

	admin, err := a.adminProfile(ctx, *id)
	if err != nil {
		return err
	}
	if err := a.ctl.Accept(ctx, *id, admin.UID, *points); err != nil {
		return err
	}
	fmt.Printf("accepted %s, %d points awarded\n", *id, *points)
	return nil
}

func (a *app) reject(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reject", flag.ExitOnError)
	id := fs.String("id", "", "request id")
	yes := fs.Bool("yes", false, "confirm the rejection")
	fs.Parse(args)

	admin, err := a.adminProfile(ctx, *id)
	if err != nil {
		return err
	}
	err = a.ctl.Reject(ctx, *id, admin.UID, func() bool {
		if *yes {
			return true
		}
		fmt.Print("reject this request? rerun with -yes to confirm\n")
		return false
	})
	if err != nil {
		return err
	}
	fmt.Printf("rejected %s\n", *id)
	return nil
}

func (a *app) listBins(ctx context.Context) error {
	list, err := a.bins.List(ctx)
	if err != nil {
		return err
	}
	for _, b := range bins.Active(list) {
		line := fmt.Sprintf("%s  %-20s  (%.4f, %.4f)", b.ID, b.Name, b.Location.Lat, b.Location.Lng)
		if b.FillLevel != nil && b.Capacity != nil {
			line += fmt.Sprintf("  %.0f/%.0f", *b.FillLevel, *b.Capacity)
		}
		fmt.Println(line)
	}
	return nil
}

// planRoute orders the active bins into a collection path from the
// given start point and prints the leg-by-leg distances.
func (a *app) planRoute(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("route", flag.ExitOnError)
	start := fs.String("start", "", "start point as lat,lng or an address")
	fs.Parse(args)

	origin, err := a.parsePoint(ctx, *start)
	if err != nil {
		return err
	}

	list, err := a.bins.List(ctx)
	if err != nil {
		return err
	}
	var stops []models.GeoPoint
	for _, b := range bins.Active(list) {
		stops = append(stops, b.Location)
	}

	path, err := a.routes.Optimize(ctx, origin, stops)
	if err != nil {
		return err
	}

	var total float64
	for i := 1; i < len(path); i++ {
		leg := route.HaversineKm(path[i-1], path[i])
		total += leg
		fmt.Printf("%2d. (%.4f, %.4f)  +%.2f km\n", i, path[i].Lat, path[i].Lng, leg)
	}
	fmt.Printf("total %.2f km over %d stops\n", total, len(path)-1)
	return nil
}

func (a *app) parsePoint(ctx context.Context, s string) (models.GeoPoint, error) {
	if s == "" {
		return models.GeoPoint{}, fmt.Errorf("-start is required")
	}
	var pt models.GeoPoint
	if n, err := fmt.Sscanf(s, "%f,%f", &pt.Lat, &pt.Lng); n == 2 && err == nil && pt.Valid() {
		return pt, nil
	}
	pt, _, ok, err := a.resolver.Resolve(ctx, s)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("geocode: %w", err)
	}
	if !ok {
		return models.GeoPoint{}, fmt.Errorf("no match for %q", s)
	}
	return pt, nil
}

// adminProfile checks the signed-in role and primes the controller
// with the current record so terminal states are refused locally.
func (a *app) adminProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	snap := a.sess.Snapshot()
	if snap.Profile == nil {
		return nil, fmt.Errorf("sign in first (-email/-password)")
	}
	if snap.Profile.Role != models.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}
	if id != "" {
		if current, err := a.store.Get(ctx, id); err == nil {
			a.ctl.Review(current)
		}
	}
	return snap.Profile, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pickupctl [flags] <command>

commands:
  whoami     show the signed-in profile
  submit     create a pickup request (-type -contact -when -image -address)
  requests   list requests (admin sees all, users see their own)
  accept     accept a request (-id -points)
  reject     reject a request (-id -yes)
  bins       list active collection bins
  route      plan a collection path over active bins (-start)`)
	flag.PrintDefaults()
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
