// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

// bestChainConfig defines the configuration options for the bestchain
// command.
type bestChainConfig struct{}

// bestChainCfg defines the configuration options for the command.
var bestChainCfg = bestChainConfig{}

// Execute is the main entry point for the command.  It's invoked by the
// parser.
func (cmd *bestChainConfig) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	version, found, err := db.ReadVersion()
	if err != nil {
		return err
	}
	if found {
		log.Infof("Store version: %d", version)
	}

	bestHash, err := db.ReadBestChain()
	if err != nil {
		return err
	}
	if bestHash == nil {
		log.Info("No best chain recorded")
		return nil
	}
	log.Infof("Best chain: %v", bestHash)

	checkpoint, err := db.ReadSyncCheckpoint()
	if err != nil {
		return err
	}
	if checkpoint != nil {
		log.Infof("Sync checkpoint: %v", checkpoint)
	}

	invalidTrust, err := db.ReadBestInvalidTrust()
	if err != nil {
		return err
	}
	if invalidTrust != nil {
		log.Infof("Best invalid chain trust: %v", invalidTrust)
	}

	pubKey, found, err := db.ReadCheckpointPubKey()
	if err != nil {
		return err
	}
	if found {
		log.Infof("Checkpoint master public key: %s", pubKey)
	}

	return nil
}
