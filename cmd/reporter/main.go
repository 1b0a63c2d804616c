package main

import (
	"fmt"
	"log"
	"os"

	"PriceCast/internal/services/report"
	applogger "PriceCast/pkg/logger"
)

func main() {
	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ds, err := report.LoadDataset(report.DefaultCompaniesPath, report.DefaultFeedbacksPath)
	if err != nil {
		l.Error("dataset load failed", applogger.Error(err))
		os.Exit(1)
	}
	l.Info("dataset loaded",
		applogger.Int("companies", len(ds.Companies)),
		applogger.Int("feedbacks", len(ds.Feedbacks)),
		applogger.Int("skipped_rows", ds.Skipped),
	)

	written, err := report.NewGenerator(report.DefaultOutputDir, l).Run(ds)
	fmt.Printf("%d/%d charts written to %s/\n", len(written), len(report.Charts()), report.DefaultOutputDir)
	if err != nil {
		l.Error("some charts failed", applogger.Error(err))
		os.Exit(1)
	}
}
