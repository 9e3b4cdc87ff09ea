package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TextChainSettler/internal/bridge"
	"TextChainSettler/internal/chain"
	"TextChainSettler/internal/clearnode"
	"TextChainSettler/internal/config"
	"TextChainSettler/internal/db"
	internalhttp "TextChainSettler/internal/http"
	"TextChainSettler/internal/notify"
	"TextChainSettler/internal/queue"
	"TextChainSettler/internal/services"
	"TextChainSettler/internal/session"
	"TextChainSettler/internal/signer"
	"TextChainSettler/internal/store"
	"TextChainSettler/internal/worker"
)

// clearnodeDialer adapts the concrete client to the session seam.
type clearnodeDialer struct {
	dialer *clearnode.Dialer
}

func (d clearnodeDialer) Dial(ctx context.Context) (session.Counterpart, error) {
	return d.dialer.Dial(ctx)
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	q := queue.New()

	pending, err := st.ListPendingIntents(ctx)
	if err != nil {
		log.Fatalf("load pending intents failed: %v", err)
	}
	if len(pending) > 0 {
		q.Restore(pending)
		log.Printf("restored %d pending intents", len(pending))
	}

	account, err := signer.FromHex(cfg.Signer.PrivateKey)
	if err != nil {
		log.Fatalf("signer key invalid: %v", err)
	}

	rpc := chain.NewRPCClient(cfg.Chain.RPCEndpoint, cfg.Chain.ConfirmDepth)

	producer, err := notify.NewAMQPProducer(cfg.Notifier.AMQPURL, cfg.Notifier.Exchange)
	if err != nil {
		log.Fatalf("amqp connect failed: %v", err)
	}
	defer producer.Close()

	runner := &session.Runner{
		Dialer:           clearnodeDialer{dialer: &clearnode.Dialer{Endpoint: cfg.Clearnode.WSEndpoint, AppName: cfg.Clearnode.AppName}},
		Ledger:           rpc,
		Account:          account,
		PhaseTimeout:     time.Duration(cfg.Settlement.PhaseTimeoutSeconds) * time.Second,
		ReserveMarginBps: cfg.Settlement.ReserveMarginBps,
	}

	w := &worker.Worker{
		Queue:        q,
		Session:      runner,
		Bridge:       &bridge.Bridge{Credits: st, Ledger: rpc, Contract: cfg.Chain.CreditContract},
		Journal:      st,
		Notifier:     &notify.Notifier{Publisher: producer},
		Interval:     time.Duration(cfg.Settlement.IntervalSeconds) * time.Second,
		MinBatchSize: cfg.Settlement.MinBatchSize,
	}

	intentSvc := &services.IntentService{
		Queue:   q,
		Journal: st,
		Assets:  cfg.Settlement.Assets,
	}

	h := internalhttp.NewHandler(intentSvc, st)
	srv := internalhttp.NewServer(h)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		log.Printf("settler started (account=%s interval=%ds min_batch=%d)",
			account.Address(), cfg.Settlement.IntervalSeconds, cfg.Settlement.MinBatchSize)
		w.Run(workerCtx)
		close(workerDone)
	}()

	go func() {
		log.Printf("api listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)

	// Let an in-flight session conclude within a bounded grace period.
	stopWorker()
	select {
	case <-workerDone:
	case <-time.After(90 * time.Second):
		log.Printf("shutdown grace elapsed with session still in flight")
	}
}
