package probe

import (
	"time"

	"github.com/smohades/reachcheck/internal/config"
)

func testConfig(user, password string) config.Config {
	return config.Config{
		SSHUser:        user,
		SSHPort:        22,
		SSHPassword:    password,
		SessionTimeout: 3 * time.Second,
		PromptTimeout:  7 * time.Second,
		ConnectTimeout: 2 * time.Second,
	}
}
