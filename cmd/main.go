/*
   signalroom - daily social post composer and intelligence pipeline
   Copyright (C) 2025  Unbewohnte (Kasyanov Nikolay Alexeevich)

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"signalroom/internal/bot"
	"signalroom/internal/composer"
	"signalroom/internal/config"
	"signalroom/internal/inference"
	"signalroom/internal/intel"
	"signalroom/internal/publish"
	"signalroom/internal/scheduler"
	"signalroom/internal/web"
)

const CONFIG_NAME string = "config.json"

var (
	configPath string
	staticDir  string
	wait       bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "signalroom",
		Short:        "Daily social post composer and community intelligence pipeline",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv()
		},
		RunE: runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.GetEnv("CONFIG_FILE", CONFIG_NAME), "path to the JSON config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the web API, the Telegram bot and the schedulers",
		RunE:  runServe,
	}
	serve.Flags().StringVar(&staticDir, "static", "", "serve dashboard files from this directory")
	root.Flags().AddFlagSet(serve.Flags())

	trigger := &cobra.Command{
		Use:   "trigger [target]",
		Short: "Run the intelligence pipeline or one step of it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTrigger,
	}
	trigger.Flags().BoolVar(&wait, "wait", false, "poll the run log until the synthesizer has recorded its run")

	root.AddCommand(
		serve,
		oneShot("autodraft", "Draft today's posts once", func(ctx context.Context, a *app) (any, error) {
			return a.composer.AutoDraft(ctx)
		}),
		oneShot("sweep", "Publish every scheduled post that is due", func(ctx context.Context, a *app) (any, error) {
			return a.dispatcher.Sweep(ctx)
		}),
		oneShot("synthesize", "Build and push today's intelligence report", func(ctx context.Context, a *app) (any, error) {
			return a.pipeline.Synthesize(ctx)
		}),
		trigger,
		&cobra.Command{
			Use:   "init-config",
			Short: "Write a default config file and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := os.Stat(configPath); err == nil {
					return fmt.Errorf("%s already exists", configPath)
				}
				if err := config.DefaultConfig().Save(configPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Fill in credentials and run again.\n", configPath)
				return nil
			},
		},
	)

	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func start(ctx context.Context) (*app, error) {
	conf, created, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	a, err := newApp(ctx, conf)
	if err != nil {
		return nil, err
	}
	if created {
		a.log.WithField("path", configPath).Warn("no config found, wrote defaults")
	}
	return a, nil
}

func oneShot(name, short string, run func(context.Context, *app) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := start(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := run(ctx, a)
			if err != nil {
				return err
			}
			printJSON(cmd, result)
			return nil
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := start(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	conf := a.conf
	botDeps := bot.Deps{
		Composer: a.composer,
		Pipeline: a.pipeline,
		Watcher:  a.watcher,
		Stats:    a.dispatcher,
		Reader:   a.db,
		Calendar: a.cal,
	}

	var telegram *bot.Bot
	if conf.Telegram.Enabled {
		telegram, err = bot.NewBot(conf, botDeps, a.log)
		if err != nil {
			return fmt.Errorf("connect telegram bot: %w", err)
		}
		if len(conf.Telegram.ReportChatIDs) > 0 {
			a.pipeline.AddNotifier(telegram)
		}
	}

	jobs, err := newScheduler(a)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if conf.Web.Enabled {
		server := web.NewServer(conf, web.Deps{
			Store:     a.db,
			Composer:  a.composer,
			Pipeline:  a.pipeline,
			Stats:     a.dispatcher,
			Tester:    inference.NewConnectionTester(conf.Generation.AnthropicBaseURL, a.ollama),
			Console:   bot.NewConsole(conf, botDeps, a.log),
			Calendar:  a.cal,
			Gatherer:  a.registry,
			StaticDir: staticDir,
		}, a.log)

		hub := server.Hub()
		a.ledger.Observe(hub.PublishRunLog)
		a.composer.Observe(hub.PublishPost)
		a.dispatcher.Observe(hub.PublishPost)

		g.Go(func() error { return server.Start(gctx) })
	}

	if telegram != nil {
		g.Go(func() error { return quiet(telegram.Start(gctx)) })
	}

	g.Go(func() error { return quiet(jobs.Start(gctx)) })

	err = g.Wait()
	a.pipeline.Wait()
	a.log.Info("signalroom stopped")
	return err
}

// Schedules, read in the reference zone.
const (
	intelligenceSpec = "0 6 * * 1-5"
	autoDraftSpec    = "30 6 * * 1-5"
	sweepSpec        = "0 6-23 * * *"
)

// newScheduler registers the three daily triggers.
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	s := scheduler.New(a.cal, a.log)

	jobs := []scheduler.Job{
		{Name: "intelligence", Spec: intelligenceSpec, Run: a.pipeline.RunDaily},
		{Name: composer.AutoDraftRun, Spec: autoDraftSpec, Run: func(ctx context.Context) error {
			_, err := a.composer.AutoDraft(ctx)
			return err
		}},
		{Name: publish.SweepRun, Spec: sweepSpec, Run: func(ctx context.Context) error {
			_, err := a.dispatcher.Sweep(ctx)
			return err
		}},
	}
	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func runTrigger(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := start(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	target := intel.TargetAll
	if len(args) == 1 {
		target = strings.ToLower(args[0])
	}

	baseline, err := a.watcher.Baseline(ctx)
	if err != nil {
		return err
	}
	if err := a.pipeline.Trigger(ctx, target); err != nil {
		return fmt.Errorf("%w (targets: %s)", err, strings.Join(a.pipeline.Targets(), ", "))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Started %s.\n", target)
	a.pipeline.Wait()

	if !wait {
		entries, err := a.db.RunLogAfter(ctx, baseline)
		if err != nil {
			return err
		}
		printJSON(cmd, entries)
		return nil
	}

	a.watcher.Interval = time.Second
	result, err := a.watcher.Wait(ctx, baseline, target)
	if err != nil {
		return err
	}
	printJSON(cmd, result)
	if len(result.Failed) > 0 {
		return fmt.Errorf("failed steps: %s", strings.Join(result.Failed, ", "))
	}
	return nil
}

func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printJSON(cmd *cobra.Command, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
}
