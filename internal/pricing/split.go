package pricing

import (
	"errors"
	"sync/atomic"

	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/pricing/domain"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const maxBps = 10_000

// SplitHolder serves the current revenue split config. The config file is
// watched so fee changes apply without a restart; the env default is used
// when no file is mounted.
type SplitHolder struct {
	current atomic.Value // holds domain.RevenueConfig
}

func defaultRevenueConfig(cfg config.Config) domain.RevenueConfig {
	return domain.RevenueConfig{
		PlatformFeeBps:  cfg.PlatformFeeBps,
		MinPayoutAmount: 100,
	}
}

// NewSplitHolder loads revenue.yml and registers a watcher.
func NewSplitHolder(cfg config.Config, log *zap.Logger) (*SplitHolder, error) {
	holder := &SplitHolder{}
	fallback := defaultRevenueConfig(cfg)
	holder.current.Store(fallback)

	v := viper.New()
	v.SetConfigName("revenue")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/cadenza/config")
	v.AddConfigPath("/etc/cadenza")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		return holder, nil
	}

	if loaded, err := parseRevenueConfig(v, fallback); err != nil {
		log.Warn("invalid revenue config, keeping defaults", zap.Error(err))
	} else {
		holder.current.Store(loaded)
	}

	v.OnConfigChange(func(fsnotify.Event) {
		loaded, err := parseRevenueConfig(v, fallback)
		if err != nil {
			log.Warn("revenue config reload rejected", zap.Error(err))
			return
		}
		holder.current.Store(loaded)
		log.Info("revenue config reloaded", zap.Int("platform_fee_bps", loaded.PlatformFeeBps))
	})
	v.WatchConfig()

	return holder, nil
}

func parseRevenueConfig(v *viper.Viper, fallback domain.RevenueConfig) (domain.RevenueConfig, error) {
	out := fallback
	if err := v.Unmarshal(&out); err != nil {
		return fallback, err
	}
	if out.PlatformFeeBps < 0 || out.PlatformFeeBps > maxBps {
		return fallback, domain.ErrInvalidFeeConfig
	}
	if out.MinPayoutAmount < 0 {
		return fallback, domain.ErrInvalidFeeConfig
	}
	return out, nil
}

// Current returns the active revenue config.
func (h *SplitHolder) Current() domain.RevenueConfig {
	return h.current.Load().(domain.RevenueConfig)
}

// Split divides a gross amount into platform fee and artist share. The
// artist share absorbs the rounding remainder.
func (h *SplitHolder) Split(amount int64) domain.Split {
	cfg := h.Current()
	fee := amount * int64(cfg.PlatformFeeBps) / maxBps
	return domain.Split{
		PlatformFee: fee,
		ArtistShare: amount - fee,
	}
}

// MinPayoutAmount returns the smallest payout an artist may request.
func (h *SplitHolder) MinPayoutAmount() int64 {
	return h.Current().MinPayoutAmount
}
