// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Command ledgerworker is the write-side worker entrypoint: it wires the
// document store, cache, lock, and every CORE service together, registers
// their operations on the dispatcher, and runs the queue consumer until
// signalled to stop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/norsh-org/ledger-worker/balance"
	"github.com/norsh-org/ledger-worker/block"
	"github.com/norsh-org/ledger-worker/cache"
	"github.com/norsh-org/ledger-worker/config"
	"github.com/norsh-org/ledger-worker/dispatch"
	"github.com/norsh-org/ledger-worker/element"
	"github.com/norsh-org/ledger-worker/ledger"
	"github.com/norsh-org/ledger-worker/ledgertypes"
	"github.com/norsh-org/ledger-worker/lock"
	"github.com/norsh-org/ledger-worker/log"
	"github.com/norsh-org/ledger-worker/miner"
	"github.com/norsh-org/ledger-worker/queue"
	"github.com/norsh-org/ledger-worker/sequence"
	"github.com/norsh-org/ledger-worker/store"
)

var logger = log.NewModuleLogger(log.Main)

// rewardSymbol is the element minting proof-of-work rewards are paid in.
const rewardSymbol = "NSH"

// rewardAmount is the fixed per-block mining reward.
var rewardAmount = decimal.RequireFromString("1")

// miningThreads bounds the PoW worker pool per block.
const miningThreads = 4

// maxNonceDepth bounds how many nonce-vector dimensions Mine will grow
// into before giving up on a block.
const maxNonceDepth = 8

func main() {
	app := cli.NewApp()
	app.Name = "ledgerworker"
	app.Usage = "Norsh ledger write-side worker"
	app.Flags = []cli.Flag{configFileFlag}
	app.Commands = []cli.Command{dumpConfigCommand}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Crit("ledgerworker exited with an error", "err", err)
	}
}

// services bundles every wired CORE collaborator, replacing the
// module-level singleton registry the teacher's code favors elsewhere in
// the pack (§9 Design Notes: pass a Services struct explicitly).
type services struct {
	store     store.Store
	cache     cache.Cache
	sem       *lock.Semaphore
	sequences *sequence.Store
	balances  *balance.Service
	blocks    *block.Service
	elements  *element.Service
	ledger    *ledger.Service
	miner     *miner.Service
	dispatch  *dispatch.Dispatcher
}

func run(ctx *cli.Context) error {
	cfg := makeConfig(ctx)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := wire(rootCtx, cfg)
	if err != nil {
		return err
	}

	boot := element.NewBootstrap(svc.elements, cfg.Genesis)
	if err := boot.Run(rootCtx); err != nil {
		return err
	}

	consumer, err := queue.New(queue.Config{
		Brokers:         cfg.Kafka.Brokers,
		RequestTopic:    cfg.Kafka.RequestTopic,
		DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
		ConsumerGroup:   cfg.Kafka.ConsumerGroup,
		ThreadPoolSize:  cfg.Defaults.QueueConsumerThreadPool,
	}, svc.dispatch.Dispatch)
	if err != nil {
		return err
	}

	go runMiningLoop(rootCtx, svc)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutdown signal received")
		cancel()
	}()

	return consumer.Run(rootCtx)
}

func wire(ctx context.Context, cfg config.Config) (*services, error) {
	db, err := store.Connect(ctx, cfg.Mongo)
	if err != nil {
		return nil, err
	}

	c := cache.NewRedisCache(cfg.Redis)

	lockTimeout := time.Duration(cfg.Defaults.SemaphoreLockTimeoutMs) * time.Millisecond
	retryInitial := time.Duration(cfg.Defaults.ThreadInitialBackoffMs) * time.Millisecond
	retryMax := time.Duration(cfg.Defaults.ThreadMaxBackoffMs) * time.Millisecond
	messagingTTL := time.Duration(cfg.Defaults.MessagingTtlMs) * time.Millisecond

	sem := lock.New(c, lockTimeout, retryInitial, retryMax)
	seq := sequence.New(db)

	seedAmount, err := decimal.NewFromString(cfg.Balance.SeedAmount)
	if err != nil {
		return nil, err
	}
	balances := balance.New(db, seedAmount)

	blocks := block.New(db, seq, sem, lockTimeout, retryInitial, retryMax)
	elements := element.New(db, seq, sem, lockTimeout)
	ledgerSvc := ledger.New(db, elements, balances, seq, blocks, sem, cfg.NetworkPolicy.NetworkTax, cfg.Ledger.CaptureTaxOnChain, lockTimeout)
	minerSvc := miner.New(db, sem, lockTimeout, rewardFn(db, balances))

	d := dispatch.New(c, messagingTTL)
	registerHandlers(d, elements, ledgerSvc)

	return &services{
		store:     db,
		cache:     c,
		sem:       sem,
		sequences: seq,
		balances:  balances,
		blocks:    blocks,
		elements:  elements,
		ledger:    ledgerSvc,
		miner:     minerSvc,
		dispatch:  d,
	}, nil
}

// rewardFn credits a successful miner's balance directly for the
// designated reward element, rather than routing the reward through
// ledger.Service.CreateTransfer: a reward has no sender, a signature, or a
// nonce to validate, so it isn't shaped like a TransferRequest — it's a
// straight balance credit, the same primitive createTransfer itself
// eventually calls into.
func rewardFn(db store.Store, balances *balance.Service) miner.RewardFn {
	return func(ctx context.Context, blockID, minerID string) error {
		var rewardElement ledgertypes.Element
		found, err := db.FindOne(ctx, "elements", store.M{"symbol": rewardSymbol}, nil, &rewardElement)
		if err != nil {
			return err
		}
		if !found {
			logger.Warn("reward element not found, skipping mining reward", "symbol", rewardSymbol, "block", blockID)
			return nil
		}

		b, err := balances.Get(ctx, minerID, rewardElement.ID)
		if err != nil {
			return err
		}
		amt, err := balance.Amount(b)
		if err != nil {
			return err
		}
		return balances.Set(ctx, b, amt.Add(rewardAmount))
	}
}

// runMiningLoop periodically mines the oldest closed, unmined block.
// Mining is opportunistic background work, not a request the dispatcher
// routes: nothing in the envelope API (§6) names a caller who submits a
// proof on the worker's own behalf.
func runMiningLoop(ctx context.Context, svc *services) {
	interval := time.Duration(block.WindowMs/4) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mineNextBlock(ctx, svc)
		}
	}
}

func mineNextBlock(ctx context.Context, svc *services) {
	var candidates []ledgertypes.Block
	err := svc.store.Find(ctx, block.Collection, store.M{"closed": true, "mined": false}, store.M{"height": 1}, 1, &candidates)
	if err != nil {
		logger.Error("failed to query unmined blocks", "err", err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	b := candidates[0]
	nonces, hash, err := svc.miner.Mine(ctx, b, miningThreads, maxNonceDepth)
	if err != nil {
		logger.Warn("mining attempt did not find a solution", "block", b.ID, "err", err)
		return
	}

	ok, err := svc.miner.VerifyBlockAndRewardMiner(ctx, b.ID, nonces, hash, "worker-"+b.ID)
	if err != nil {
		logger.Error("failed to verify mined block", "block", b.ID, "err", err)
		return
	}
	if !ok {
		return
	}
	logger.Info("block mined", "block", b.ID, "hash", hash)

	// The successor may have closed before b finished mining, in which case
	// closeBlock left its previousBlockHash unset; backfill it now that b's
	// hash exists.
	if err := svc.blocks.ReleaseNextBlockForMining(ctx, b.Height, hash, time.Now()); err != nil {
		logger.Error("failed to release next block for mining", "block", b.ID, "err", err)
	}
}
