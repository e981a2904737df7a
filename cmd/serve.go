package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reflow_oven/internal/actuator"
	"reflow_oven/internal/config"
	"reflow_oven/internal/control"
	"reflow_oven/internal/handlers"
	"reflow_oven/internal/hardware"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/repository/db"
	"reflow_oven/internal/sensor"
	"reflow_oven/internal/server"
	"reflow_oven/internal/service"
	"reflow_oven/internal/telemetry"
	"reflow_oven/internal/tick"

	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

// board is the oven I/O: thermocouple frames in, duty cycles out.
type board interface {
	sensor.Device
	actuator.Outputs
}

func runServe(ctx context.Context, v *viper.Viper, flags rootFlags) error {
	cfg, err := loadConfig(v, flags)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(conn)

	io, closeIO, err := openBoard(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeIO()

	array, err := newSensorArray(io, cfg)
	if err != nil {
		return err
	}

	pid := control.NewPID(cfg.Oven.PID, cfg.Oven.PIDInterval, cfg.Oven.MinimumFanSpeed, func() (float64, bool) {
		f := array.Last()
		return f.Temperature, f.Valid
	}, io, log.Named("pid"))
	go pid.Run(ctx)

	sinks := telemetry.Multi{telemetry.NewLogSink(log.Named("telemetry"))}
	if cfg.Telemetry.Redis.Enabled {
		rs, err := telemetry.NewRedisSink(ctx, cfg.Telemetry.Redis)
		if err != nil {
			log.Warnw("redis telemetry disabled", "addr", cfg.Telemetry.Redis.Addr, "err", err)
		} else {
			defer func() { _ = rs.Close() }()
			sinks = append(sinks, rs)
		}
	}

	oven := service.NewOvenService(service.OvenDeps{
		Sensors:  array,
		PID:      pid,
		Outputs:  io,
		Ticks:    tick.NewTicker(cfg.Oven.Tick),
		Profiles: repos.ProfileRepo,
		Runs:     repos.RunRepo,
		State:    repos.StateRepo,
		Events:   repos.EventRepo,
		Sink:     sinks,
		Log:      log.Named("oven"),
		Settings: service.OvenSettings{
			CoolDownFanSpeed: cfg.Oven.CoolDownFanSpeed,
			MaxHeaterTime:    cfg.Oven.MaxHeaterTime,
		},
	})
	defer oven.Close()

	if err := oven.Restore(ctx); err != nil {
		log.Warnw("failed to restore oven state", "err", err)
	}

	services, err := service.NewService(ctx, repos, oven, array, service.AuthConfig{
		SigningKey:       cfg.Auth.SigningKey,
		TokenTTL:         cfg.Auth.TokenTTL,
		OperatorUser:     cfg.Auth.OperatorUser,
		OperatorPassword: cfg.Auth.OperatorPassword,
	})
	if err != nil {
		return err
	}
	profiles := service.NewProfileService(repos.ProfileRepo, array)
	n, err := profiles.SeedDefaults(ctx, cfg.Profiles.SeedFile)
	if err != nil {
		return err
	}
	log.Infow("profiles seeded", "written", n)

	api := handlers.NewHandler(services, log.Named("http"))
	srv := server.New(cfg.Port, api.InitRoutes())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()
	log.Infow("server started", "addr", srv.Addr(), "hardware", cfg.Hardware.Driver)

	select {
	case <-ctx.Done():
		log.Infow("shutting down server...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// openBoard returns the configured oven I/O and a function releasing it.
func openBoard(ctx context.Context, cfg config.Config, log *logger.Logger) (board, func(), error) {
	switch cfg.Hardware.Driver {
	case config.DriverSerial:
		b, err := hardware.OpenSerial(cfg.Hardware.Serial)
		if err != nil {
			if ports, lerr := hardware.SerialPorts(); lerr == nil {
				log.Errorw("serial port unavailable", "port", cfg.Hardware.Serial.Port, "available", ports)
			}
			return nil, nil, err
		}
		return b, func() {
			if err := b.Close(); err != nil {
				log.Warnw("failed to close serial port", "err", err)
			}
		}, nil
	default:
		sim := hardware.NewSimulator(cfg.Simulator.SimConfig)
		simCtx, stop := context.WithCancel(ctx)
		go sim.Run(simCtx, cfg.Simulator.Step)
		return sim, stop, nil
	}
}

func newSensorArray(dev sensor.Device, cfg config.Config) (*sensor.Array, error) {
	bus := sensor.NewBus(dev, cfg.Oven.BusTimeout)
	tcs := make([]*sensor.Thermocouple, len(cfg.Sensors))
	for i, sc := range cfg.Sensors {
		tcs[i] = sensor.NewThermocouple(bus, i, sc.Enabled, sc.OffsetC)
	}
	return sensor.NewArray(tcs...)
}
