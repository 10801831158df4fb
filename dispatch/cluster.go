package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/katalvlaran/tspgrid/matrix"
	"github.com/katalvlaran/tspgrid/tsp"
)

// SolveRequest describes one solve submitted to a coordinator.
type SolveRequest struct {
	Graph        matrix.Graph
	Iterations   int
	UpperBound   int       // tsp.Infinity for none
	Tour         *tsp.Tour // optional witness of UpperBound
	ExploreDepth int
}

// Solve opens a session on conn, waits for it to drain and returns the
// invoice.
func Solve(ctx context.Context, conn Conn, req SolveRequest) (Invoice, error) {
	blob, err := PackGraph(req.Graph)
	if err != nil {
		return Invoice{}, err
	}
	var login LoginReply
	err = Submit(ctx, conn, KindLogin, LoginArgs{
		Graph:        blob,
		Iterations:   req.Iterations,
		UpperBound:   req.UpperBound,
		Tour:         req.Tour,
		ExploreDepth: req.ExploreDepth,
	}, &login)
	if err != nil {
		return Invoice{}, err
	}

	var inv Invoice
	if err := Submit(ctx, conn, KindLogout, LogoutArgs{SessionID: login.SessionID, Wait: true}, &inv); err != nil {
		return Invoice{}, err
	}

	return inv, nil
}

// Cluster is a coordinator with in-process workers.
type Cluster struct {
	Coordinator *Coordinator
	Conn        Conn
	Workers     []*Worker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StartCluster starts a coordinator and n local workers. Worker names are
// derived from wopts.Name; when copts.Secret is set each worker gets its
// own token.
func StartCluster(ctx context.Context, n int, copts Options, wopts WorkerOptions) *Cluster {
	ctx, cancel := context.WithCancel(ctx)
	coord := NewCoordinator(copts)
	cl := &Cluster{Coordinator: coord, Conn: NewLocalConn(coord), cancel: cancel}
	if wopts.Name == "" {
		wopts.Name = "local"
	}
	base := wopts.Name
	for i := range n {
		wopts.Name = fmt.Sprintf("%s-%d", base, i)
		if len(copts.Secret) > 0 {
			tok, err := IssueToken(copts.Secret, wopts.Name, 24*time.Hour)
			if err != nil {
				coord.log.Error("issue local token", "error", err)
			}
			wopts.Token = tok
		}
		w := NewWorker(NewLocalConn(coord), wopts)
		cl.Workers = append(cl.Workers, w)
		cl.wg.Add(1)
		go func() {
			defer cl.wg.Done()
			if err := w.Run(ctx); err != nil {
				coord.log.Warn("local worker stopped", "error", err)
			}
		}()
	}

	return cl
}

// Close stops the workers and the coordinator streams.
func (cl *Cluster) Close() {
	cl.cancel()
	cl.Coordinator.Close()
	cl.wg.Wait()
}
