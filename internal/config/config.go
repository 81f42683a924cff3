package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Second slot policies accepted in Scan.SecondSlotPolicy.
const (
	PolicySequential = "sequential"
	PolicyEager      = "eager"
)

// Config represents the application configuration structure.
// It contains settings for the environment, HTTP server, operator auth, the
// scan workflow, the camera, the decoder, the verification service, the
// operator screen previews and graceful shutdown behavior.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`

	// HTTP contains all HTTP server related configurations
	HTTP struct {
		// Addr is the address and port the HTTP server will listen on
		Addr string `env:"HTTP_ADDR" env-default:":8080" yaml:"addr"`
		// ReadTimeout is the maximum duration for reading the entire request, including the body
		ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"1m" yaml:"readTimeout"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"2m" yaml:"writeTimeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled
		IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"2m" yaml:"idleTimeout"`
		// RequestTimeout is the maximum time allowed for processing a single control request
		RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" env-default:"10s" yaml:"requestTimeout"`
		// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
		MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" env-default:"0" yaml:"maxHeaderBytes"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
	} `yaml:"http"`

	// JWT contains the operator token keys. Control endpoints are open when PublicKey is empty.
	JWT struct {
		// PublicKey is the PEM encoded RSA key used to verify operator tokens
		PublicKey string `env:"JWT_PUBLIC_KEY" yaml:"publicKey"`
		// PrivateKey is the PEM encoded RSA key used by the jwt command to sign tokens
		PrivateKey string `env:"JWT_PRIVATE_KEY" yaml:"privateKey"`
	} `yaml:"jwt"`

	// Scan contains the pairing workflow settings
	Scan struct {
		// SecondSlotPolicy is "sequential" (open the second camera after the first code)
		// or "eager" (open both cameras at start)
		SecondSlotPolicy string `env:"SCAN_SECOND_SLOT_POLICY" env-default:"sequential" yaml:"secondSlotPolicy"`
		// AutoAuthorizeSecond starts decoding the second code without an operator trigger
		AutoAuthorizeSecond bool `env:"SCAN_AUTO_AUTHORIZE_SECOND" env-default:"false" yaml:"autoAuthorizeSecond"`
		// AimSize is the side in pixels of the centered square submitted for decoding
		AimSize int `env:"SCAN_AIM_SIZE" env-default:"200" yaml:"aimSize"`
		// FrameInterval is the sampling tick period
		FrameInterval time.Duration `env:"SCAN_FRAME_INTERVAL" env-default:"33ms" yaml:"frameInterval"`
		// SettleDelay is how long an outcome stays on screen before the full reset
		SettleDelay time.Duration `env:"SCAN_SETTLE_DELAY" env-default:"3s" yaml:"settleDelay"`
		// AutoRestart starts a new cycle after every full reset that was not caused by a failure
		AutoRestart bool `env:"SCAN_AUTO_RESTART" env-default:"true" yaml:"autoRestart"`
		// RestartDelay is the pause between a full reset and the automatic restart
		RestartDelay time.Duration `env:"SCAN_RESTART_DELAY" env-default:"100ms" yaml:"restartDelay"`
	} `yaml:"scan"`

	// Capture contains camera settings
	Capture struct {
		// Facing is the requested camera ("environment" or "user")
		Facing string `env:"CAPTURE_FACING" env-default:"environment" yaml:"facing"`
		// AcquireTimeout bounds a single stream acquisition
		AcquireTimeout time.Duration `env:"CAPTURE_ACQUIRE_TIMEOUT" env-default:"10s" yaml:"acquireTimeout"`
		// FirstDir is the image directory backing the first slot camera
		FirstDir string `env:"CAPTURE_FIRST_DIR" env-default:"frames/first" yaml:"firstDir"`
		// SecondDir is the image directory backing the second slot camera
		SecondDir string `env:"CAPTURE_SECOND_DIR" env-default:"frames/second" yaml:"secondDir"`
		// Warmup is how long a stream takes before producing readable frames
		Warmup time.Duration `env:"CAPTURE_WARMUP" env-default:"500ms" yaml:"warmup"`
		// FrameInterval is how long each image is shown before the next one
		FrameInterval time.Duration `env:"CAPTURE_FRAME_INTERVAL" env-default:"1s" yaml:"frameInterval"`
	} `yaml:"capture"`

	// Decoder contains QR decoder settings
	Decoder struct {
		// TryHarder trades speed for accuracy
		TryHarder bool `env:"DECODER_TRY_HARDER" env-default:"false" yaml:"tryHarder"`
	} `yaml:"decoder"`

	// Verifier contains the verification service settings
	Verifier struct {
		// Endpoint is the URL the code pair is posted to
		Endpoint string `env:"VERIFIER_ENDPOINT" yaml:"endpoint"`
		// FirstField is the form field carrying the first code
		FirstField string `env:"VERIFIER_FIRST_FIELD" env-default:"dp" yaml:"firstField"`
		// SecondField is the form field carrying the second code
		SecondField string `env:"VERIFIER_SECOND_FIELD" env-default:"productQr" yaml:"secondField"`
		// SuccessMarker is the substring of a reply that marks a matched pair
		SuccessMarker string `env:"VERIFIER_SUCCESS_MARKER" env-default:"OK" yaml:"successMarker"`
		// Timeout bounds a single verification round trip
		Timeout time.Duration `env:"VERIFIER_TIMEOUT" env-default:"10s" yaml:"timeout"`
	} `yaml:"verifier"`

	// Preview contains operator screen settings
	Preview struct {
		// MaxDisplayLength is the number of code characters shown before truncation
		MaxDisplayLength int `env:"PREVIEW_MAX_DISPLAY_LENGTH" env-default:"8" yaml:"maxDisplayLength"`
		// FPS caps preview frames per slot pushed to the operator screen; 0 disables previews
		FPS float64 `env:"PREVIEW_FPS" env-default:"5" yaml:"fps"`
		// Width is the width previews are scaled to
		Width int `env:"PREVIEW_WIDTH" env-default:"320" yaml:"width"`
		// JPEGQuality is the quality previews are encoded with
		JPEGQuality int `env:"PREVIEW_JPEG_QUALITY" env-default:"60" yaml:"jpegQuality"`
	} `yaml:"preview"`

	// GracefulShutdownTimeout is the maximum duration to wait for ongoing requests to complete during shutdown
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Load receives the path for yaml config file and returns a filled, validated Config struct.
func Load(configPath string) (*Config, error) {
	var cfg Config
	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate reports the first setting that cannot drive a scan station.
func (c *Config) Validate() error {
	switch c.Scan.SecondSlotPolicy {
	case PolicySequential, PolicyEager:
	default:
		return fmt.Errorf("unknown second slot policy %q", c.Scan.SecondSlotPolicy)
	}
	if c.Scan.AimSize <= 0 {
		return fmt.Errorf("aim size must be positive, got %d", c.Scan.AimSize)
	}
	if c.Scan.SettleDelay < 0 || c.Scan.RestartDelay < 0 {
		return fmt.Errorf("scan delays must not be negative")
	}
	if c.Verifier.Endpoint == "" {
		return fmt.Errorf("verifier endpoint is required")
	}
	if c.Preview.FPS < 0 {
		return fmt.Errorf("preview fps must not be negative")
	}

	return nil
}
