package main

import (
	"flag"
	"fmt"

	"github.com/matrixorigin/tabletstore/pkg/metadata"
	"github.com/matrixorigin/tabletstore/pkg/options"
	"github.com/sirupsen/logrus"
)

// tablet-tool dumps the rowset topology recorded in a tablet superblock.
//
//	tablet-tool -meta /data/t1/meta
//	tablet-tool -meta /data/t1/meta -backend pebble

var (
	metaDir = flag.String("meta", "", "meta store directory")
	backend = flag.String("backend", options.MetaBackendFile, "meta backend, file or pebble")
)

func main() {
	flag.Parse()
	if *metaDir == "" {
		flag.Usage()
		logrus.Fatal("missing -meta directory")
	}

	opts := &options.Options{
		StoreCfg: &options.StoreCfg{
			MetaDir:     *metaDir,
			MetaBackend: *backend,
		},
	}
	store, err := metadata.OpenMetaStore(opts.FillDefaults(""))
	if err != nil {
		logrus.Fatalf("open meta store: %s", err)
	}
	defer store.Close()

	version, payload, err := store.LoadSuperblock()
	if err != nil {
		logrus.Fatalf("load superblock: %s", err)
	}
	desc, err := metadata.DecodeSuperblock(payload)
	if err != nil {
		logrus.Fatalf("decode superblock: %s", err)
	}
	logrus.Infof("superblock version %d, %d compressed bytes", version, len(payload))
	fmt.Println(desc.String())
	if len(desc.Orphaned) > 0 {
		logrus.Warnf("%d orphaned blocks await reclamation", len(desc.Orphaned))
	}
}
