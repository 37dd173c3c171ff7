package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"nutrifacts/internal/adapter/device"
	"nutrifacts/internal/app"
	"nutrifacts/internal/domain"
	"nutrifacts/internal/i18n"
)

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func (c *cli) credentials(fs *flag.FlagSet, args []string) (string, string, error) {
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password (default $NUTRIFACTS_PASSWORD, else prompt)")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	var err error
	if *email == "" {
		if *email, err = c.ask("Email: "); err != nil {
			return "", "", err
		}
	}
	if *password == "" {
		*password = os.Getenv("NUTRIFACTS_PASSWORD")
	}
	if *password == "" {
		if *password, err = c.ask("Password: "); err != nil {
			return "", "", err
		}
	}
	return *email, *password, nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	email, password, err := c.credentials(c.flags("login"), args)
	if err != nil {
		return err
	}
	if _, err := c.sessions.Login(ctx, email, password); err != nil {
		return err
	}
	c.println(i18n.Text(i18n.KeyLoggedIn, c.cfg.Lang))
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	email, password, err := c.credentials(c.flags("register"), args)
	if err != nil {
		return err
	}
	if err := c.sessions.Register(ctx, email, password); err != nil {
		return err
	}
	c.println(i18n.Text(i18n.KeyRegistered, c.cfg.Lang))
	return nil
}

func (c *cli) logout(ctx context.Context, args []string) error {
	if err := c.flags("logout").Parse(args); err != nil {
		return err
	}
	if err := c.sessions.Logout(ctx); err != nil {
		return err
	}
	c.println(i18n.Text(i18n.KeyLoggedOut, c.cfg.Lang))
	return nil
}

func (c *cli) refresh(ctx context.Context, args []string) error {
	if err := c.flags("refresh").Parse(args); err != nil {
		return err
	}
	if _, err := c.sessions.Refresh(ctx); err != nil {
		return err
	}
	c.println(i18n.Text(i18n.KeyRefreshed, c.cfg.Lang))
	return nil
}

type scanOutput struct {
	Label     string                `json:"label"`
	Raw       domain.RawNutrition   `json:"raw"`
	Derived   domain.DerivedMetrics `json:"derived"`
	Record    *domain.HistoryRecord `json:"record,omitempty"`
	SaveError string                `json:"saveError,omitempty"`
	AlbumPath string                `json:"albumPath,omitempty"`
	Detail    []domain.DetailRow    `json:"detail"`
}

func (c *cli) scan(ctx context.Context, args []string) error {
	fs := c.flags("scan")
	image := fs.String("image", "", "Label image to upload (gallery)")
	camera := fs.Bool("camera", false, "Capture the label with capture_command")
	label := fs.String("label", "", "Product name (prompted when empty)")
	album := fs.Bool("album", false, "Copy the image into the NutriFacts album")
	yes := fs.Bool("yes", false, "Do not ask for camera or gallery access")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *camera == (*image != "") {
		fmt.Fprintln(c.out, "scan: exactly one of --image or --camera is required")
		return errUsage
	}

	if _, err := c.sessions.Fresh(ctx); err != nil {
		return err
	}

	cfg := device.Config{
		CaptureCommand: c.cfg.CaptureCommand,
		Choose:         func(context.Context) (string, error) { return *image, nil },
	}
	if !*yes {
		cfg.Prompt = func(_ context.Context, src domain.Source) (bool, error) {
			return c.confirm(fmt.Sprintf("Allow NutriFacts to use the %s?", src))
		}
	}
	scans := app.NewScanService(c.client, c.client, device.NewPicker(cfg),
		app.WithScanTimeout(c.cfg.ScanTimeout),
		app.WithObserver(func(ev app.ScanEvent) { log.Printf("scan %s: %q", ev.Kind, ev.Result.Label) }))
	flow := app.NewScanFlow(scans, c.sessions)

	src := domain.SourceGallery
	if *camera {
		src = domain.SourceCamera
	}
	img, err := flow.Start(ctx, src)
	if err != nil {
		return err
	}

	name := *label
	if name == "" {
		if name, err = c.ask("Product name: "); err != nil {
			return err
		}
	}
	if err := flow.SetLabel(name); err != nil {
		return err
	}
	res, err := flow.Submit(ctx)
	if err != nil {
		return err
	}

	out := scanOutput{Label: res.Label, Raw: res.Raw, Derived: res.Derived, Record: res.Record}
	out.Detail = domain.Detail(domain.HistoryRecord{ProductName: res.Label, Raw: res.Raw, Derived: res.Derived})
	if res.SaveErr != nil {
		out.SaveError = i18n.Message(res.SaveErr, c.cfg.Lang)
	}
	if *album {
		path, err := device.NewAlbum(c.cfg.AlbumDir).Save(img)
		if err != nil {
			log.Printf("warn: album copy failed: %v", err)
		}
		out.AlbumPath = path
	}

	if *asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	c.println(res.Label)
	c.printDetail(out.Detail)
	if res.SaveErr != nil {
		c.println(i18n.Text(i18n.KeySaveWarning, c.cfg.Lang), out.SaveError)
	} else {
		c.println(i18n.Text(i18n.KeySaved, c.cfg.Lang))
	}
	if out.AlbumPath != "" {
		c.println(i18n.Text(i18n.KeyAlbumSaved, c.cfg.Lang))
	}
	return nil
}

func (c *cli) showHistory(ctx context.Context, args []string) error {
	fs := c.flags("history")
	filter := fs.String("filter", "", "Show only products whose name contains this text")
	show := fs.String("show", "", "Show the details of one record by id")
	asJSON := fs.Bool("json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := c.sessions.Fresh(ctx); err != nil {
		return err
	}
	view := app.NewHistoryView(c.history, c.sessions)
	if err := view.Activate(ctx); err != nil {
		return err
	}

	if *show != "" {
		rows, err := view.Select(*show)
		if err != nil {
			return err
		}
		if *asJSON {
			return json.NewEncoder(c.out).Encode(rows)
		}
		c.printDetail(rows)
		return nil
	}

	view.SetQuery(*filter)
	records := view.Visible()
	if *asJSON {
		return json.NewEncoder(c.out).Encode(records)
	}
	if len(records) == 0 {
		c.println(i18n.Text(i18n.KeyEmptyHistory, c.cfg.Lang))
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tPRODUCT\tSCORE\tKCAL\tWATER")
	for _, r := range records {
		date := "-"
		if !r.ScannedAt.IsZero() {
			date = r.ScannedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%dg\n", r.ID, date, r.ProductName, r.Raw.NutriScore, r.Derived.Calories, r.Derived.WaterGrams)
	}
	return tw.Flush()
}

func (c *cli) printDetail(rows []domain.DetailRow) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", i18n.DetailLabel(row.Label, c.cfg.Lang), row.Value)
	}
	_ = tw.Flush()
}
