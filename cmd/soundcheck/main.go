/*
 * This file is part of Cadenza (https://github.com/cadenzalabs/cadenza).
 * Copyright (C) 2026 Cadenza Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// soundcheck is a command-line exerciser for the Cadenza audio pipeline:
// list devices and their capabilities, play an MP3 file through a playback
// stream, or run a capture-to-playback echo loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/decred/slog"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/cadenzalabs/cadenza/device"
	"github.com/cadenzalabs/cadenza/hardware"
	"github.com/cadenzalabs/cadenza/metrics"
	"github.com/cadenzalabs/cadenza/stream"
)

// envDefault reads an environment override, falling back to def. A .env
// file loaded at startup can set these for repeated runs.
func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func buildProvider(name string) (hardware.Provider, error) {
	switch name {
	case "portaudio":
		return hardware.NewPortAudioProvider()
	case "malgo":
		return hardware.NewMalgoProvider()
	case "mock":
		return hardware.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// printDevices dumps every device of the default host with its capability
// summary from the catalog.
func printDevices(registry *device.Registry, catalog *device.Catalog) error {
	hosts, err := registry.Hosts()
	if err != nil {
		return err
	}
	for _, host := range hosts {
		fmt.Printf("Host %s (%s)\n", host.ID, host.Name)
	}
	fmt.Println()

	devices, err := registry.Devices("")
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No audio devices found")
		return nil
	}

	for i, dev := range devices {
		tag := ""
		if dev.IsDefaultInput {
			tag += " (default input)"
		}
		if dev.IsDefaultOutput {
			tag += " (default output)"
		}
		fmt.Printf("Device %d: %s%s\n", i, dev.Name, tag)
		fmt.Printf("  host: %s, in: %d ch, out: %d ch, rate: %g Hz\n",
			dev.HostID, dev.MaxInputChannels, dev.MaxOutputChannels, dev.DefaultSampleRate)

		formats, err := catalog.Formats(dev.Name)
		if err != nil {
			return err
		}
		rates, err := catalog.SampleRates(dev.Name)
		if err != nil {
			return err
		}
		channels, err := catalog.MaxChannels(dev.Name)
		if err != nil {
			return err
		}
		fmt.Printf("  formats: %v, rates: %v, max channels: %d\n", formats, rates, channels)
		fmt.Println()
	}
	return nil
}

// writeFrames queues one buffer on a playback stream, backing off and
// retrying while the stream signals backpressure.
func writeFrames(ctx context.Context, engine *stream.Engine, id string, frames []float32) error {
	for {
		err := engine.Write(id, frames)
		if err == nil {
			return nil
		}
		if !errors.Is(err, stream.ErrBackpressure) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// playFile decodes an MP3 file and pushes it through a playback stream on
// the named device (the default output device when name is empty).
func playFile(ctx context.Context, engine *stream.Engine, registry *device.Registry,
	path, deviceName string, log slog.Logger) error {

	if deviceName == "" {
		dev, err := registry.DefaultOutputDevice()
		if err != nil {
			return err
		}
		deviceName = dev.Name
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	frames, sampleRate, err := decodeMP3(f)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	log.Infof("playing %s: %d samples at %d Hz", path, len(frames), sampleRate)

	id, err := engine.CreateOutputStream(deviceName, hardware.StreamConfig{
		Channels:   mp3Channels,
		SampleRate: float64(sampleRate),
		Format:     hardware.FormatF32,
	})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close(id) }()

	chunk := mp3Channels * 960
	for start := 0; start < len(frames); start += chunk {
		end := start + chunk
		if end > len(frames) {
			end = len(frames)
		}
		if err := writeFrames(ctx, engine, id, frames[start:end]); err != nil {
			return err
		}
	}

	// Let the callback drain the queue before the stream is torn down.
	drain := time.Duration(float64(chunk*32) / float64(mp3Channels*sampleRate) * float64(time.Second))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(drain):
	}
	return nil
}

// echoLoop wires a capture stream straight into a playback stream until
// the context is cancelled. Backpressure on the playback side drops the
// buffer; an echo loop prefers losing audio over lagging behind.
func echoLoop(ctx context.Context, engine *stream.Engine, registry *device.Registry,
	captureName, playbackName string, log slog.Logger) error {

	if captureName == "" {
		dev, err := registry.DefaultInputDevice()
		if err != nil {
			return err
		}
		captureName = dev.Name
	}
	if playbackName == "" {
		dev, err := registry.DefaultOutputDevice()
		if err != nil {
			return err
		}
		playbackName = dev.Name
	}

	cfg := hardware.StreamConfig{Channels: 1, SampleRate: 48000, Format: hardware.FormatF32}
	playID, err := engine.CreateOutputStream(playbackName, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close(playID) }()

	capID, err := engine.CreateInputStream(captureName, cfg, func(samples []float32) {
		err := engine.Write(playID, samples)
		if err != nil && !errors.Is(err, stream.ErrBackpressure) {
			log.Warnf("echo write: %v", err)
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close(capID) }()

	log.Infof("echoing %q -> %q, interrupt to stop", captureName, playbackName)
	<-ctx.Done()
	return ctx.Err()
}

// serveMetrics exposes the engine's Prometheus collector until the context
// is cancelled.
func serveMetrics(ctx context.Context, addr string, collector *metrics.Collector, log slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("metrics on http://%s/metrics", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func realMain() error {
	// A .env file can pre-seed the flag defaults below.
	_ = godotenv.Load()

	flagListDevices := flag.Bool("lsdev", false, "List audio devices and quit")
	flagBackend := flag.String("backend", envDefault("SOUNDCHECK_BACKEND", "portaudio"),
		"Audio backend: portaudio, malgo or mock")
	flagDevice := flag.String("device", envDefault("SOUNDCHECK_DEVICE", ""),
		"Device name. Empty for the system default")
	flagPlay := flag.String("play", "", "Play an MP3 file and quit")
	flagEcho := flag.Bool("echo", false, "Echo the capture device to the playback device")
	flagMetricsAddr := flag.String("metricsaddr", "", "Serve Prometheus metrics on this address")
	flagDebugLevel := flag.String("debuglevel", "info", "Log level to use")
	flag.Parse()

	logLevel, ok := slog.LevelFromString(*flagDebugLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", *flagDebugLevel)
	}
	logBknd := slog.NewBackend(os.Stdout)
	log := logBknd.Logger("MAIN")
	log.SetLevel(logLevel)

	provider, err := buildProvider(*flagBackend)
	if err != nil {
		return err
	}
	if err := provider.Initialize(); err != nil {
		return err
	}
	defer func() { _ = provider.Terminate() }()

	registry := device.NewRegistry(provider)
	catalog := device.NewCatalog(provider, registry)

	logEngine := logBknd.Logger("STRM")
	logEngine.SetLevel(logLevel)
	engine := stream.NewEngine(provider, registry, stream.WithLogger(logEngine))
	defer engine.Shutdown()

	if *flagListDevices {
		return printDevices(registry, catalog)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if *flagMetricsAddr != "" {
		collector := metrics.NewCollector(engine, registry)
		g.Go(func() error { return serveMetrics(gctx, *flagMetricsAddr, collector, log) })
	}

	switch {
	case *flagPlay != "":
		g.Go(func() error {
			defer cancel()
			return playFile(gctx, engine, registry, *flagPlay, *flagDevice, log)
		})
	case *flagEcho:
		g.Go(func() error { return echoLoop(gctx, engine, registry, *flagDevice, "", log) })
	default:
		flag.Usage()
		cancel()
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	stats := engine.Stats()
	log.Infof("streams created=%d closed=%d, buffers dropped=%d, silence fills=%d",
		stats.StreamsCreated, stats.StreamsClosed, stats.BuffersDropped, stats.SilenceFills)
	return err
}

func main() {
	if err := realMain(); err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}
