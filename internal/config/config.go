// Package config loads the application's top-level YAML configuration,
// following the teacher's internal/config.LoadConfig (read file, then
// gopkg.in/yaml.v3 Unmarshal into a plain struct tree).
package config

import (
	"fmt"
	"os"
	"time"

	"NetSpectraDPI/internal/pipeline"

	"gopkg.in/yaml.v3"
)

// PipelineConfig mirrors pipeline.Config's enumerated fields so the YAML
// document stays flat and self-describing instead of nesting a
// generic map.
type PipelineConfig struct {
	GrainSize     int    `yaml:"grain_size"`
	NumL7Workers  int    `yaml:"num_l7_workers"`
	CPUIDs        []int  `yaml:"cpu_ids"`
	TasksPoolSize int    `yaml:"tasks_pool_size"`
	V4Rows        uint32 `yaml:"v4_rows"`
	V6Rows        uint32 `yaml:"v6_rows"`
	NUMAAware     bool   `yaml:"numa_aware"`
	NUMANode      int    `yaml:"numa_node"`
	AlignTasks    bool   `yaml:"align_tasks"`
	Collapsed     bool   `yaml:"collapsed"`
}

// ToPipelineConfig converts the YAML-shaped fields into pipeline.Config.
func (p PipelineConfig) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		GrainSize:     p.GrainSize,
		NumL7Workers:  p.NumL7Workers,
		CPUIDs:        p.CPUIDs,
		TasksPoolSize: p.TasksPoolSize,
		V4Rows:        p.V4Rows,
		V6Rows:        p.V6Rows,
		NUMAAware:     pipeline.NUMAConfig{Enabled: p.NUMAAware, Node: p.NUMANode},
		AlignTasks:    p.AlignTasks,
		Collapsed:     p.Collapsed,
	}
}

// SourceConfig selects and configures the packet source.
type SourceConfig struct {
	Type         string `yaml:"type"` // "pcap-offline", "pcap-live", or "nats"
	PcapFile     string `yaml:"pcap_file"`
	PcapIface    string `yaml:"pcap_iface"`
	PcapSnapLen  int32  `yaml:"pcap_snaplen"`
	PcapPromisc  bool   `yaml:"pcap_promiscuous"`
	NATSURL      string `yaml:"nats_url"`
	NATSSubject  string `yaml:"nats_subject"`
	NATSQueueLen int    `yaml:"nats_queue_len"`
}

// ClickHouseConfig mirrors the teacher's config.ClickHouseConfig, plus
// this repository's own flush-batching knobs.
type ClickHouseConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Database      string        `yaml:"database"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	FlushSize     int           `yaml:"flush_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// SinkConfig selects and configures the result sink.
type SinkConfig struct {
	Type       string           `yaml:"type"` // "clickhouse" or "stdout"
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// ControlConfig configures the introspection surface.
type ControlConfig struct {
	HTTPListenAddr string `yaml:"http_listen_addr"`
	GRPCListenAddr string `yaml:"grpc_listen_addr"`
}

// ClassifierConfig configures the reference HeuristicClassifier.
type ClassifierConfig struct {
	TerminationAfter int `yaml:"termination_after"`
}

// Config is the top-level configuration for the dpi-engine command.
type Config struct {
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Source     SourceConfig     `yaml:"source"`
	Sink       SinkConfig       `yaml:"sink"`
	Control    ControlConfig    `yaml:"control"`
	Classifier ClassifierConfig `yaml:"classifier"`
}

// Load reads and parses the YAML configuration at filePath.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal yaml: %w", err)
	}
	return &cfg, nil
}
