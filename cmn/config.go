package cmn

import (
	"os"
	ratomic "sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// RangeKind selects which ZoneRange implementation the zone manager uses.
type RangeKind string

const (
	RangeOct     RangeKind = "oct"     // compact, at most two cells per axis
	RangeDynamic RangeKind = "dynamic" // any extent, selectable by config
)

type (
	// ProtocolConfig fixes the bit widths baked into every wire message;
	// it must agree between server and client or decoding silently
	// misaligns (there is no version negotiation in scope).
	ProtocolConfig struct {
		IDBitSize     int `json:"idBitSize" yaml:"idBitSize"`         // realId / parentId width
		ZoneIDBitSize int `json:"zoneIdBitSize" yaml:"zoneIdBitSize"` // local zoneId width
		PositionBits  int `json:"positionBits" yaml:"positionBits"`
		RotationBits  int `json:"rotationBits" yaml:"rotationBits"`
	}

	ZoneConfig struct {
		CellSizeX int       `json:"cellSizeX" yaml:"cellSizeX"`
		CellSizeY int       `json:"cellSizeY" yaml:"cellSizeY"`
		CellSizeZ int       `json:"cellSizeZ" yaml:"cellSizeZ"`
		Radius    int       `json:"radius" yaml:"radius"` // window radius, r in (2r+1)^3
		RangeKind RangeKind `json:"rangeKind" yaml:"rangeKind"`
	}

	CollectorConfig struct {
		PeriodMillis       int64 `json:"periodMillis" yaml:"periodMillis"`
		IdleSleepMillis    int64 `json:"idleSleepMillis" yaml:"idleSleepMillis"` // extra sleep after each tick; <= 0 adds none (the period ticker still paces the loop, it never busy-waits)
		HistoryBacklog     int   `json:"historyBacklog" yaml:"historyBacklog"`
		FanoutWorkers      int   `json:"fanoutWorkers" yaml:"fanoutWorkers"`
	}

	WriterConfig struct {
		MTU           int   `json:"mtu" yaml:"mtu"`
		UDPOverhead   int   `json:"udpOverhead" yaml:"udpOverhead"`
		FrameOverhead int   `json:"frameOverhead" yaml:"frameOverhead"`
		ClockOffsetMS int64 `json:"clockOffsetMs" yaml:"clockOffsetMs"` // negative bias, §4.11
	}

	Config struct {
		Protocol  ProtocolConfig  `json:"protocol" yaml:"protocol"`
		Zone      ZoneConfig      `json:"zone" yaml:"zone"`
		Collector CollectorConfig `json:"collector" yaml:"collector"`
		Writer    WriterConfig    `json:"writer" yaml:"writer"`
	}
)

// Default returns the configuration used throughout spec.md's worked
// examples (§8 scenario 1): cell size 32, zoneIdBits=8, idBits=64,
// posBits=24, rotBits=12, 1500-byte MTU, 50ms collection period.
func Default() *Config {
	return &Config{
		Protocol: ProtocolConfig{
			IDBitSize:     64,
			ZoneIDBitSize: 8,
			PositionBits:  24,
			RotationBits:  12,
		},
		Zone: ZoneConfig{
			CellSizeX: 32, CellSizeY: 32, CellSizeZ: 32,
			Radius:    1,
			RangeKind: RangeOct,
		},
		Collector: CollectorConfig{
			PeriodMillis:    50,
			IdleSleepMillis: 5,
			HistoryBacklog:  64,
			FanoutWorkers:   0, // 0 => GOMAXPROCS
		},
		Writer: WriterConfig{
			MTU:           1500,
			UDPOverhead:   50,
			FrameOverhead: 5,
			ClockOffsetMS: -100,
		},
	}
}

// BufferSize is the per-message byte budget the writer's splitter targets.
func (w WriterConfig) BufferSize() int {
	size := w.MTU - w.UDPOverhead - w.FrameOverhead
	if size < 0 {
		size = 0
	}
	return size
}

func (c CollectorConfig) Period() time.Duration {
	return time.Duration(c.PeriodMillis) * time.Millisecond
}

// globalConfigOwner atomically swaps the active Config, mirroring the
// teacher's cmn.GCO pattern (transport/bundle/stream_bundle.go reads
// cmn.GCO.Get() under no lock at all — an atomic pointer load).
type globalConfigOwner struct {
	ptr ratomic.Pointer[Config]
}

func (g *globalConfigOwner) Get() *Config {
	c := g.ptr.Load()
	if c == nil {
		c = Default()
		g.ptr.Store(c)
	}
	return c
}

func (g *globalConfigOwner) Put(c *Config) { g.ptr.Store(c) }

// GCO is the process-wide configuration owner, matching the teacher's
// global-config-owner idiom. The engine's own packages do not read it:
// they take their configuration as constructor arguments.
var GCO = &globalConfigOwner{}

// LoadJSON decodes a JSON configuration file into a fresh Config seeded
// with defaults for any field the file omits.
func LoadJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %q", path)
	}
	cfg := Default()
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse json config %q", path)
	}
	return cfg, nil
}

// LoadYAML decodes a YAML configuration file the same way.
func LoadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %q", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse yaml config %q", path)
	}
	return cfg, nil
}
