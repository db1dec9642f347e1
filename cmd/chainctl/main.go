// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	flags "github.com/jessevdk/go-flags"
)

// realMain is the real main function for the utility.  It is necessary to
// work around the fact that deferred functions do not run when os.Exit() is
// called.
func realMain() error {
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Setup the parser options and commands.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	parserFlags := flags.Options(flags.HelpFlag | flags.PassDoubleDash)
	parser := flags.NewNamedParser(appName, parserFlags)
	parser.AddGroup("Global Options", "", cfg)
	parser.AddCommand("bestchain",
		"Show the best chain summary recorded in the store", "",
		&bestChainCfg)
	parser.AddCommand("fetchtxindex",
		"Fetch the index entry of the specified transaction hash", "",
		&fetchTxIndexCfg)
	parser.AddCommand("scanindex",
		"Scan the block and transaction indexes for inconsistencies",
		"", &scanIndexCfg)

	// Parse command line and invoke the Execute function for the
	// specified command.
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		} else {
			log.Error(err)
		}

		return err
	}

	return nil
}

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Work around defer not working after os.Exit()
	if err := realMain(); err != nil {
		os.Exit(1)
	}
}
