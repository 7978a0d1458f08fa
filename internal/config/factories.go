//go:build linux

package config

import (
	"fmt"
	"log/slog"

	"ntaio/internal/iomgr"

	"github.com/mitchellh/mapstructure"
)

func decode(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:			mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:		true,
		WeaklyTypedInput:	true,
		Result:				out,
	})
	if err != nil { return err }
	return dec.Decode(options)
}

func PoolConfig(cfg *EngineConfig) (iomgr.PoolConfig, error) {
	var pc iomgr.PoolConfig
	if err := decode(cfg.Threadpool, &pc); err != nil {
		return pc, fmt.Errorf("failed to decode threadpool options: %w", err)
	}
	return pc, nil
}

func RingConfig(cfg *EngineConfig) (iomgr.RingConfig, error) {
	var rc iomgr.RingConfig
	if err := decode(cfg.Uring, &rc); err != nil {
		return rc, fmt.Errorf("failed to decode uring options: %w", err)
	}
	return rc, nil
}

func validateBackend(cfg *EngineConfig) error {
	switch cfg.Backend {
	case "threadpool":
		pc, err := PoolConfig(cfg)
		if err != nil { return err }
		if err := validate.Struct(pc); err != nil { return formatValidationError(err) }
	case "uring":
		rc, err := RingConfig(cfg)
		if err != nil { return err }
		if err := validate.Struct(rc); err != nil { return formatValidationError(err) }
	}
	return nil
}

// CreateBackend builds the configured backend. A kernel or sandbox that
// refuses io_uring gets the thread pool instead.
func CreateBackend(cfg *EngineConfig) (iomgr.Backend, error) {
	switch cfg.Backend {
	case "threadpool":
		pc, err := PoolConfig(cfg)
		if err != nil { return nil, err }
		return iomgr.CreatePool(pc), nil

	case "uring":
		rc, err := RingConfig(cfg)
		if err != nil { return nil, err }
		m, err := iomgr.CreateIoMgr(rc)
		if err != nil {
			slog.Warn("io_uring unavailable, using threadpool", "err", err)
			return iomgr.CreatePool(rc.Pool), nil
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown engine backend: %q", cfg.Backend)
}
