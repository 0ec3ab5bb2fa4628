package main

import (
	"bytes"
	"context"
	"os"
	"sort"
	"strings"
	"syscall"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cryptoverlay/internal/config"
	"github.com/seenimoa/cryptoverlay/internal/display"
	"github.com/seenimoa/cryptoverlay/internal/metrics"
	"github.com/seenimoa/cryptoverlay/pkg/models"
)

func TestPrintTable(t *testing.T) {
	u := models.Update{
		Symbols: []string{"ETHUSDT", "BTCUSDT"},
		Result: models.AggregationResult{
			"BTCUSDT": {Symbol: "BTCUSDT", Price: models.Float(65000), ChangePct: models.Float(6), PremiumPct: models.Float(1.5)},
			"ETHUSDT": {Symbol: "ETHUSDT"},
		},
	}

	var buf bytes.Buffer
	if err := printTable(&buf, u); err != nil {
		t.Fatalf("printTable: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "SYMBOL") || !strings.Contains(lines[0], "PREMIUM") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "ETHUSDT") || !strings.Contains(lines[1], "N/A") {
		t.Errorf("absent row = %q", lines[1])
	}
	for _, want := range []string{"BTCUSDT", "65,000.00", "▲ 6.00%", "1.50%", "🚀"} {
		if !strings.Contains(lines[2], want) {
			t.Errorf("row %q missing %q", lines[2], want)
		}
	}
}

func TestAlertRules(t *testing.T) {
	c := config.Default()
	c.Alerts.Rules = map[string]config.AlertRule{
		"btcusdt": {Above: 70000, Below: 60000},
		"ethusdt": {Below: 2500},
	}

	rules := alertRules(c)
	sort.Slice(rules, func(i, j int) bool { return rules[i].Symbol < rules[j].Symbol })
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Symbol != "btcusdt" || rules[0].Above != 70000 || rules[0].Below != 60000 {
		t.Errorf("rules[0] = %+v", rules[0])
	}
	if rules[1].Below != 2500 || rules[1].Above != 0 {
		t.Errorf("rules[1] = %+v", rules[1])
	}
}

func TestBuildEngineRejectsInvalidConfig(t *testing.T) {
	c := config.Default()
	c.RefreshInterval = 0

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	if _, err := buildEngine(c, log, metrics.NewNoOpCollector()); err == nil {
		t.Error("expected validation error")
	}

	c = config.Default()
	eng, err := buildEngine(c, log, metrics.NewNoOpCollector())
	if err != nil {
		t.Fatalf("buildEngine(defaults): %v", err)
	}
	if eng.Mapper().Quote != "KRW" || eng.Mapper().Suffix != "USDT" {
		t.Errorf("mapper = %+v", eng.Mapper())
	}
}

func TestWatchTogglesCyclesRenderer(t *testing.T) {
	r := display.NewRenderer(&bytes.Buffer{}, display.ModeDetailed, false)
	sig := make(chan os.Signal)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	go func() {
		watchToggles(ctx, sig, r, log)
		close(done)
	}()

	sig <- syscall.SIGHUP
	sig <- syscall.SIGHUP
	cancel()
	<-done

	// The loop only returns after finishing the second toggle.
	if r.Mode() != display.ModeCompact {
		t.Errorf("mode = %s, want compact after two toggles from detailed", r.Mode())
	}
}
