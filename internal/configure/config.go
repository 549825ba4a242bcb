package configure

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func checkErr(err error) {
	if err != nil {
		zap.S().Fatalw("config",
			"error", err,
		)
	}
}

func New() *Config {
	initLogging("info")

	config := viper.New()

	// Default config
	b, _ := json.Marshal(Config{
		ConfigFile: "config.yaml",
	})
	tmp := viper.New()
	defaultConfig := bytes.NewReader(b)

	tmp.SetConfigType("json")
	checkErr(tmp.ReadConfig(defaultConfig))
	checkErr(config.MergeConfigMap(viper.AllSettings()))

	pflag.String("config", "config.yaml", "Config file location")
	pflag.Bool("noheader", false, "Disable the startup header")

	pflag.Parse()
	checkErr(config.BindPFlags(pflag.CommandLine))

	// File
	config.SetConfigFile(config.GetString("config"))
	config.AddConfigPath(".")

	if err := config.ReadInConfig(); err == nil {
		checkErr(config.MergeInConfig())
	}

	bindEnvs(config, Config{})

	// Environment
	config.AutomaticEnv()
	config.SetEnvPrefix("DESKHIVE")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AllowEmptyEnv(true)

	c := &Config{}
	checkErr(config.Unmarshal(&c))

	c.applyDefaults()

	initLogging(c.Level)

	return c
}

func bindEnvs(config *viper.Viper, iface interface{}, parts ...string) {
	ifv := reflect.ValueOf(iface)
	ift := reflect.TypeOf(iface)

	for i := 0; i < ift.NumField(); i++ {
		v := ifv.Field(i)
		t := ift.Field(i)

		tv, ok := t.Tag.Lookup("mapstructure")
		if !ok {
			continue
		}

		switch v.Kind() {
		case reflect.Struct:
			bindEnvs(config, v.Interface(), append(parts, tv)...)
		default:
			_ = config.BindEnv(strings.Join(append(parts, tv), "."))
		}
	}
}

type Config struct {
	Level      string `mapstructure:"level" json:"level"`
	ConfigFile string `mapstructure:"config" json:"config"`
	NoHeader   bool   `mapstructure:"noheader" json:"noheader"`

	K8S struct {
		NodeName string `mapstructure:"node_name" json:"node_name"`
		PodName  string `mapstructure:"pod_name" json:"pod_name"`
	} `mapstructure:"k8s" json:"k8s"`

	Redis struct {
		Username   string   `mapstructure:"username" json:"username"`
		Password   string   `mapstructure:"password" json:"password"`
		Database   int      `mapstructure:"db" json:"db"`
		Sentinel   bool     `mapstructure:"sentinel" json:"sentinel"`
		Addresses  []string `mapstructure:"addresses" json:"addresses"`
		MasterName string   `mapstructure:"master_name" json:"master_name"`
	} `mapstructure:"redis" json:"redis"`

	Mongo struct {
		URI    string `mapstructure:"uri" json:"uri"`
		DB     string `mapstructure:"db" json:"db"`
		Direct bool   `mapstructure:"direct" json:"direct"`
	} `mapstructure:"mongo" json:"mongo"`

	Nats struct {
		URI           string `mapstructure:"uri" json:"uri"`
		SubjectPrefix string `mapstructure:"subject_prefix" json:"subject_prefix"`
	} `mapstructure:"nats" json:"nats"`

	Health struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
	} `mapstructure:"health" json:"health"`

	PProf struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
	} `mapstructure:"pprof" json:"pprof"`

	Monitoring struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
		Labels  Labels `mapstructure:"labels" json:"labels"`
	} `mapstructure:"monitoring" json:"monitoring"`

	Http struct {
		Addr string `mapstructure:"addr" json:"addr"`
		Type string `mapstructure:"type" json:"type"`

		Ports struct {
			Gateway int `mapstructure:"gateway" json:"gateway"`
		} `mapstructure:"ports" json:"ports"`
	} `mapstructure:"http" json:"http"`

	Credentials struct {
		JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret"`
	} `mapstructure:"credentials" json:"credentials"`

	Realtime struct {
		// Payload ceilings. Signaling payloads carry SDP blobs and get a
		// larger budget than chat events.
		PayloadMaxBytes       int `mapstructure:"payload_max_bytes" json:"payload_max_bytes"`
		SignalPayloadMaxBytes int `mapstructure:"signal_payload_max_bytes" json:"signal_payload_max_bytes"`

		CallRateLimit         int `mapstructure:"call_rate_limit" json:"call_rate_limit"`
		CallRateWindowSeconds int `mapstructure:"call_rate_window_seconds" json:"call_rate_window_seconds"`
		TypingIntervalMs      int `mapstructure:"typing_interval_ms" json:"typing_interval_ms"`

		OfferTimeoutSeconds int `mapstructure:"offer_timeout_seconds" json:"offer_timeout_seconds"`

		PresenceOnlineTTLSeconds     int `mapstructure:"presence_online_ttl_seconds" json:"presence_online_ttl_seconds"`
		PresenceOfflineTTLSeconds    int `mapstructure:"presence_offline_ttl_seconds" json:"presence_offline_ttl_seconds"`
		SDPTTLSeconds                int `mapstructure:"sdp_ttl_seconds" json:"sdp_ttl_seconds"`
		ICETTLSeconds                int `mapstructure:"ice_ttl_seconds" json:"ice_ttl_seconds"`
		ActiveConversationTTLSeconds int `mapstructure:"active_conversation_ttl_seconds" json:"active_conversation_ttl_seconds"`

		SystemStatusIntervalSeconds int `mapstructure:"system_status_interval_seconds" json:"system_status_interval_seconds"`
	} `mapstructure:"realtime" json:"realtime"`
}

func (c *Config) applyDefaults() {
	rt := &c.Realtime

	if rt.PayloadMaxBytes == 0 {
		rt.PayloadMaxBytes = 20 * 1024
	}

	if rt.SignalPayloadMaxBytes == 0 {
		rt.SignalPayloadMaxBytes = 120 * 1024
	}

	if rt.CallRateLimit == 0 {
		rt.CallRateLimit = 10
	}

	if rt.CallRateWindowSeconds == 0 {
		rt.CallRateWindowSeconds = 60
	}

	if rt.TypingIntervalMs == 0 {
		rt.TypingIntervalMs = 1000
	}

	if rt.OfferTimeoutSeconds == 0 {
		rt.OfferTimeoutSeconds = 60
	}

	if rt.PresenceOnlineTTLSeconds == 0 {
		rt.PresenceOnlineTTLSeconds = 3600
	}

	if rt.PresenceOfflineTTLSeconds == 0 {
		rt.PresenceOfflineTTLSeconds = 300
	}

	if rt.SDPTTLSeconds == 0 {
		rt.SDPTTLSeconds = 30
	}

	if rt.ICETTLSeconds == 0 {
		rt.ICETTLSeconds = 300
	}

	if rt.ActiveConversationTTLSeconds == 0 {
		rt.ActiveConversationTTLSeconds = 3600
	}

	if rt.SystemStatusIntervalSeconds == 0 {
		rt.SystemStatusIntervalSeconds = 60
	}
}

type Labels []struct {
	Key   string `mapstructure:"key" json:"key"`
	Value string `mapstructure:"value" json:"value"`
}

func (l Labels) ToMap() map[string]string {
	mp := map[string]string{}

	for _, v := range l {
		mp[v.Key] = v.Value
	}

	return mp
}
