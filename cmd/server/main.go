package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vzdtic/movieticket-raft/pkg/api"
	"github.com/vzdtic/movieticket-raft/pkg/grpc"
	"github.com/vzdtic/movieticket-raft/pkg/raft"
	"github.com/vzdtic/movieticket-raft/pkg/service"
	"github.com/vzdtic/movieticket-raft/pkg/statemachine"
	"github.com/vzdtic/movieticket-raft/pkg/wal"
)

func main() {
	nodeID := flag.String("id", "", "Node ID")
	raftAddr := flag.String("raft-addr", "", "gRPC peer listen address (e.g., localhost:5000)")
	httpAddr := flag.String("http-addr", "", "HTTP client API listen address (e.g., localhost:8000)")
	peers := flag.String("peers", "", "Comma-separated Raft peer list (id1=addr1,id2=addr2)")
	httpPeers := flag.String("http-peers", "", "Comma-separated node-to-HTTP-address list used for NotLeader redirects (id1=host1:port1,id2=host2:port2)")
	walDir := flag.String("wal", "", "WAL directory path")
	seatHoldTTL := flag.Duration("seat-hold-ttl", 5*time.Second, "Seat hold duration before ExpireHolds releases it")
	flag.Parse()

	if *nodeID == "" || *raftAddr == "" || *httpAddr == "" {
		flag.Usage()
		os.Exit(1)
	}

	peerAddrs := make(map[string]string)
	peerIDs := make([]string, 0)
	if *peers != "" {
		for _, peer := range strings.Split(*peers, ",") {
			parts := strings.Split(peer, "=")
			if len(parts) != 2 {
				continue
			}
			peerAddrs[parts[0]] = parts[1]
			if parts[0] != *nodeID {
				peerIDs = append(peerIDs, parts[0])
			}
		}
	}
	peerAddrs[*nodeID] = *raftAddr

	httpAddrs := make(map[string]string)
	if *httpPeers != "" {
		for _, peer := range strings.Split(*httpPeers, ",") {
			parts := strings.Split(peer, "=")
			if len(parts) != 2 {
				continue
			}
			httpAddrs[parts[0]] = parts[1]
		}
	}
	httpAddrs[*nodeID] = *httpAddr

	walPath := *walDir
	if walPath == "" {
		walPath = fmt.Sprintf("/tmp/movieticket-raft-wal-%s", *nodeID)
	}

	log.Printf("starting node %s (raft=%s http=%s peers=%v wal=%s)", *nodeID, *raftAddr, *httpAddr, peerIDs, walPath)

	walInstance, err := wal.Open(walPath)
	if err != nil {
		log.Fatalf("failed to open WAL: %v", err)
	}

	config := raft.DefaultConfig(*nodeID, peerIDs)
	config.WALDir = walPath

	sm := statemachine.New(config.ApplyCacheSize)

	transport := grpc.New(*raftAddr, peerAddrs)
	if err := transport.Start(); err != nil {
		log.Fatalf("failed to start peer transport: %v", err)
	}

	node := raft.NewNode(config, transport, walInstance, sm)
	transport.SetNode(node)

	if err := node.Start(); err != nil {
		log.Fatalf("failed to start raft node: %v", err)
	}

	front := service.New(node, sm, service.NewInMemoryAuthenticator(24*time.Hour), service.NullAssistant{}, service.Config{
		SeatHoldTTL:    *seatHoldTTL,
		ProposeTimeout: config.ProposeTimeout,
	}, httpAddrs)

	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: api.NewHTTPHandler(front, node),
	}

	go func() {
		log.Printf("client API listening on %s", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	stopExpiry := startExpiryTicker(front, config.HeartbeatInterval*4)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down...")

	close(stopExpiry)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	httpServer.Shutdown(ctx)
	transport.Stop()
	node.Stop()
	walInstance.Close()

	log.Println("shutdown complete")
}

// startExpiryTicker proposes ExpireHolds periodically, but only while this
// node is the leader — a follower's ProposeExpireHolds would just fail with
// NotLeader, so skipping the call avoids a log of no-op errors.
func startExpiryTicker(front *service.ServiceFront, interval time.Duration) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !front.IsLeader() {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if err := front.ProposeExpireHolds(ctx, time.Now()); err != nil {
					log.Printf("expire-holds proposal failed: %v", err)
				}
				cancel()
			}
		}
	}()
	return stop
}
