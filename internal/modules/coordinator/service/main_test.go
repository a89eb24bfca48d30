package service

import (
	"os"
	"testing"

	"lever_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("info"); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}
