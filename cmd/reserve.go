package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/srt-reserver/internal/application/usecases"
	"github.com/example/srt-reserver/internal/domain/trip"
	"github.com/example/srt-reserver/internal/runs"
	"github.com/example/srt-reserver/internal/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type tripFlags struct {
	file        string
	interactive bool
	params      trip.Params
}

func newReserveCmd(g *globalFlags) *cobra.Command {
	f := &tripFlags{}

	c := &cobra.Command{
		Use:   "reserve",
		Short: "Poll for a seat on one trip until it is booked, waitlisted or polling gives up",
		Example: `  srtreserve reserve --from 동탄 --to 동대구 --date 20250917 --hour 08
  srtreserve reserve --trip trip.yaml --waitlist
  srtreserve reserve --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.setup()
			if err != nil {
				return err
			}
			t, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			creds := cfg.Credentials()
			if err := creds.Validate(); err != nil {
				return fmt.Errorf("%w (set SRT_ID and SRT_PW)", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := openServices(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer svc.Close()

			session, err := svc.session(nil)
			if err != nil {
				return err
			}
			reports := make(chan scheduler.Report, 1)
			d := &scheduler.Dispatcher{
				Session: session,
				Guard:   svc.guard,
				Logger:  log,
				OnDone:  func(r scheduler.Report) { reports <- r },
			}
			if svc.db != nil {
				d.Store = runs.NewRepo(svc.db)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Searching: %s\n", t.Summary())
			id, err := d.Submit(ctx, t, creds)
			if err != nil {
				return err
			}
			go func() {
				<-ctx.Done()
				_ = d.Cancel(id)
			}()

			rep := <-reports
			msg := usecases.UserMessage(rep.Result, rep.Err)
			if rep.Err != nil || !rep.Result.Outcome.Success() {
				return errors.New(msg)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	fl := c.Flags()
	fl.StringVar(&f.file, "trip", "", "YAML file with the trip fields")
	fl.BoolVarP(&f.interactive, "interactive", "i", false, "ask for each trip field on the terminal")
	fl.StringVar(&f.params.Departure, "from", "", "departure station")
	fl.StringVar(&f.params.Arrival, "to", "", "arrival station")
	fl.StringVar(&f.params.Date, "date", "", "travel date, YYYYMMDD")
	fl.StringVar(&f.params.Hour, "hour", "", "earliest departure hour, even, 00-22")
	fl.IntVar(&f.params.Passengers, "passengers", trip.DefaultPassengers, "adult passengers")
	fl.IntVar(&f.params.WindowStart, "window-start", trip.DefaultWindowStart, "first result position to consider")
	fl.IntVar(&f.params.WindowEnd, "window-end", trip.DefaultWindowEnd, "last result position to consider")
	fl.BoolVar(&f.params.AllowWaitlist, "waitlist", false, "join the waitlist when no seat is bookable")
	c.MarkFlagsMutuallyExclusive("trip", "interactive")
	return c
}

func (f *tripFlags) resolve(cmd *cobra.Command) (trip.Request, error) {
	if f.interactive {
		return promptTrip(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	p := f.params
	if f.file != "" {
		fromFile, err := loadTripFile(f.file)
		if err != nil {
			return trip.Request{}, err
		}
		p = overlay(fromFile, f.params, cmd.Flags())
	}
	return trip.New(p)
}

// overlay copies the flags the user actually set on top of base.
func overlay(base, flags trip.Params, fs *pflag.FlagSet) trip.Params {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("from", func() { base.Departure = flags.Departure })
	set("to", func() { base.Arrival = flags.Arrival })
	set("date", func() { base.Date = flags.Date })
	set("hour", func() { base.Hour = flags.Hour })
	set("passengers", func() { base.Passengers = flags.Passengers })
	set("window-start", func() { base.WindowStart = flags.WindowStart })
	set("window-end", func() { base.WindowEnd = flags.WindowEnd })
	set("waitlist", func() { base.AllowWaitlist = flags.AllowWaitlist })
	return base
}

func loadTripFile(path string) (trip.Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return trip.Params{}, err
	}
	var p trip.Params
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return trip.Params{}, fmt.Errorf("read trip file %s: %w", path, err)
	}
	return p, nil
}

// promptTrip asks for each field in turn and re-asks after a bad answer.
func promptTrip(in io.Reader, out io.Writer) (trip.Request, error) {
	sc := bufio.NewScanner(in)
	b := trip.NewBuilder()
	for {
		f, ok := b.Next()
		if !ok {
			break
		}
		fmt.Fprint(out, f.Prompt()+" ")
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return trip.Request{}, err
			}
			return trip.Request{}, fmt.Errorf("input ended before %s was answered", f)
		}
		if err := b.Answer(sc.Text()); err != nil {
			fmt.Fprintf(out, "%v\n", err)
		}
	}
	t, err := b.Build()
	if err != nil {
		return trip.Request{}, err
	}
	return t, nil
}
