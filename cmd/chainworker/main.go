// Command chainworker runs a single validator's chain worker process:
// storage, execution runtime, the ChainWorker request surface and the
// validator-to-validator network transport, wired the way the teacher's
// cmd/node wires its blockchain node.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/tolelom/multichain/config"
	"github.com/tolelom/multichain/crypto"
	"github.com/tolelom/multichain/crypto/certgen"
	"github.com/tolelom/multichain/dispatch"
	"github.com/tolelom/multichain/keyring"
	"github.com/tolelom/multichain/network"
	"github.com/tolelom/multichain/runtime"
	"github.com/tolelom/multichain/storage"
	"github.com/tolelom/multichain/worker"

	// Import operation modules to trigger their init() self-registration
	// into runtime.DefaultRegistry.
	_ "github.com/tolelom/multichain/runtime/ops/ledger"
	_ "github.com/tolelom/multichain/runtime/ops/record"
)

var log = logrus.WithField("component", "chainworker")

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit (requires node ID from config)")
	flag.Parse()

	// Read keystore password from environment (not CLI flags — they leak via ps).
	password := os.Getenv("CHAINWORKER_PASSWORD")
	if password == "" {
		log.Warn("CHAINWORKER_PASSWORD not set — keystore will use an empty password")
	}

	// ---- generate key mode ----
	if *genKey {
		priv, pub, err := crypto.GenerateKeyPair()
		if err != nil {
			log.Fatal(err)
		}
		if err := keyring.Save(*keyPath, password, priv); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Public key (validator identity): %s\n", pub.Hex())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	// ---- generate certs mode ----
	if *genCerts != "" {
		cfgForCerts, err := loadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if err := certgen.GenerateAll(*genCerts, cfgForCerts.NodeID, nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, cfgForCerts.NodeID)
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- load validator key ----
	ks, err := keyring.Load(*keyPath, password)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}

	// ---- open storage ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := storage.NewStore(db, storage.SystemClock{})
	view := storage.NewViewStore(db)

	// ---- genesis bootstrap (if fresh validator) ----
	if _, err := store.ReadNetworkDescription(); err == storage.ErrNotFound {
		adminChain, err := config.Bootstrap(cfg, store, view)
		if err != nil {
			log.Fatalf("genesis: %v", err)
		}
		log.WithField("admin_chain", adminChain.Hex()).Info("genesis committed")
	} else if err != nil {
		log.Fatalf("read network description: %v", err)
	}

	// ---- execution runtime ----
	executor := runtime.NewExecutor(runtime.DefaultRegistry)

	// ---- chain worker ----
	w, err := worker.New(cfg.Worker.ToWorkerConfig(), store, view, executor, ks.PrivateKey())
	if err != nil {
		log.Fatalf("worker init: %v", err)
	}
	handler := dispatch.NewHandler(w)

	// ---- TLS ----
	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}
	if tlsCfg != nil {
		log.Info("mTLS enabled for validator-to-validator transport")
	}

	// ---- network ----
	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	node := network.NewNode(cfg.NodeID, p2pAddr, handler, tlsCfg)
	if err := node.Start(); err != nil {
		log.Fatalf("p2p start: %v", err)
	}
	defer node.Stop()
	log.WithField("addr", p2pAddr).Info("listening for validator connections")

	// ---- connect to seed peers ----
	for _, sp := range cfg.SeedPeers {
		if _, err := node.AddPeer(sp.ID, sp.Addr); err != nil {
			log.WithError(err).Warnf("seed peer %s (%s)", sp.ID, sp.Addr)
			continue
		}
		log.WithField("peer", sp.ID).Info("connected to seed peer")
	}

	log.WithField("validator", ks.PublicKey().Hex()).Info("chain worker running")

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	// Deferred calls run in LIFO order: node.Stop() → db.Close().
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("config file not found at %s, using defaults", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
