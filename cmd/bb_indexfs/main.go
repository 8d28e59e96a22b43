package main

import (
	"log"
	"os"

	configuration "github.com/buildbarn/bb-indexfs/pkg/configuration/bb_indexfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"
)

// bb_indexfs stores fixed-size files on a volume image. Every file has
// a header that references its data sectors, either directly or
// through up to three levels of indirection nodes. The geometry of the
// volume is provided through a Jsonnet configuration file.
//
// Usage:
//
//	bb_indexfs [--config bb_indexfs.jsonnet] layout SIZE...
//	bb_indexfs [--config bb_indexfs.jsonnet] store FILE...
//	bb_indexfs [--config bb_indexfs.jsonnet] cat INDEX
//	bb_indexfs [--config bb_indexfs.jsonnet] map INDEX [OFFSET...]
//	bb_indexfs [--config bb_indexfs.jsonnet] describe [INDEX]
//	bb_indexfs [--config bb_indexfs.jsonnet] remove INDEX

var commands = map[string]func(c *configuration.ApplicationConfiguration, args []string) error{
	"cat":      runCat,
	"describe": runDescribe,
	"layout":   runLayout,
	"map":      runMap,
	"remove":   runRemove,
	"store":    runStore,
}

func main() {
	configurationPath := pflag.String("config", "bb_indexfs.jsonnet", "Path of the Jsonnet configuration file")
	printMetrics := pflag.Bool("print-metrics", false, "Print Prometheus metrics to standard error upon completion")
	pflag.SetInterspersed(false)
	pflag.Parse()
	args := pflag.Args()
	if len(args) == 0 {
		log.Fatal("Usage: bb_indexfs [--config bb_indexfs.jsonnet] layout|store|cat|map|describe|remove ...")
	}
	command, ok := commands[args[0]]
	if !ok {
		log.Fatalf("Unknown command %#v", args[0])
	}

	c, err := configuration.GetIndexFSConfiguration(*configurationPath)
	if err != nil {
		log.Fatal("Failed to read configuration: ", err)
	}
	if err := command(c, args[1:]); err != nil {
		log.Fatalf("Failed to run command %#v: %s", args[0], err)
	}

	if *printMetrics {
		metricFamilies, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			log.Fatal("Failed to gather metrics: ", err)
		}
		for _, metricFamily := range metricFamilies {
			if _, err := expfmt.MetricFamilyToText(os.Stderr, metricFamily); err != nil {
				log.Fatal("Failed to print metrics: ", err)
			}
		}
	}
}
