package clock

import "time"

// Config selects the clock implementation. An empty NTPServer uses the
// system clock.
type Config struct {
	NTPServer   string        `yaml:"ntp_server"`
	NTPInterval time.Duration `yaml:"ntp_interval"`
	NTPTimeout  time.Duration `yaml:"ntp_timeout"`
}
