package main

import (
	"fxconverter/internal/app"
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := app.Run(); err != nil {
		logrus.WithError(err).Error("Application stopped")
		os.Exit(1)
	}
}
