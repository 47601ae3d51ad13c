package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"connect6/game"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	DefaultBatchSize    = 64
	DefaultBatchTimeout = time.Millisecond

	// Planes: stones of the player to move, opponent stones, and a plane of
	// ones when the player to move still has two stones in the turn.
	inputPlanes = 3
)

type ONNXConfig struct {
	ModelPath    string
	Sessions     int
	BatchSize    int
	BatchTimeout time.Duration
}

// ONNX evaluates positions with a policy/value network. The model takes an
// input named "input" of shape [batch, 3, size, size] and produces "policy"
// logits of shape [batch, size*size] and "value" of shape [batch, 1].
type ONNX struct {
	size    int
	clients []*onnxClient
	rr      atomic.Uint64
}

var ortInitOnce sync.Once
var ortInitErr error

func NewONNX(size int, cfg ONNXConfig) (*ONNX, error) {
	if cfg.Sessions <= 0 {
		cfg.Sessions = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}

	ortInitOnce.Do(func() {
		if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("%w: failed to init onnxruntime: %w", ErrModel, ortInitErr)
	}

	o := &ONNX{size: size}
	for i := 0; i < cfg.Sessions; i++ {
		client, err := newONNXClient(size, cfg)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.clients = append(o.clients, client)
	}
	log.Info().Msgf("loaded model %s with %d sessions", cfg.ModelPath, cfg.Sessions)
	return o, nil
}

func (o *ONNX) Close() {
	for _, c := range o.clients {
		c.close()
	}
}

func (o *ONNX) Evaluate(ctx context.Context, b *game.Board) (Evaluation, error) {
	if b.Size() != o.size {
		return Evaluation{}, fmt.Errorf("%w: model expects size %d, board is %d", ErrModel, o.size, b.Size())
	}
	client := o.clients[o.rr.Add(1)%uint64(len(o.clients))]
	logits, value, err := client.predict(ctx, encodeInput(b))
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{
		Value:  math.Max(-1, math.Min(1, float64(value))),
		Priors: maskedSoftmax(b, logits),
	}, nil
}

func encodeInput(b *game.Board) []float32 {
	area := b.Size() * b.Size()
	input := make([]float32, inputPlanes*area)
	mover := b.Turn()
	for i := 0; i < area; i++ {
		switch b.Get(game.PosAt(b.Size(), i)) {
		case mover:
			input[i] = 1
		case mover.Opponent():
			input[area+i] = 1
		}
	}
	if b.Remaining() == 2 {
		for i := 2 * area; i < 3*area; i++ {
			input[i] = 1
		}
	}
	return input
}

// maskedSoftmax turns policy logits into priors over the empty cells only.
func maskedSoftmax(b *game.Board, logits []float32) map[game.Pos]float64 {
	moves := b.LegalMoves()
	priors := make(map[game.Pos]float64, len(moves))
	maxLogit := math.Inf(-1)
	for _, p := range moves {
		maxLogit = math.Max(maxLogit, float64(logits[p.Index(b.Size())]))
	}
	sum := 0.0
	for _, p := range moves {
		e := math.Exp(float64(logits[p.Index(b.Size())]) - maxLogit)
		priors[p] = e
		sum += e
	}
	for p := range priors {
		priors[p] /= sum
	}
	return priors
}

type inferenceRequest struct {
	input    []float32
	respChan chan inferenceResponse
}

type inferenceResponse struct {
	policy []float32
	value  float32
	err    error
}

// onnxClient owns one session and batches concurrent requests into it.
type onnxClient struct {
	size     int
	cfg      ONNXConfig
	session  *ort.DynamicAdvancedSession
	requests chan inferenceRequest
	done     chan struct{}
	once     sync.Once
}

func newONNXClient(size int, cfg ONNXConfig) (*onnxClient, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModel, err)
	}
	defer options.Destroy()
	// Searcher goroutines already run in parallel.
	options.SetIntraOpNumThreads(1)
	options.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, []string{"input"}, []string{"policy", "value"}, options)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session: %w", ErrModel, err)
	}

	c := &onnxClient{
		size:     size,
		cfg:      cfg,
		session:  session,
		requests: make(chan inferenceRequest, cfg.BatchSize*2),
		done:     make(chan struct{}),
	}
	go c.batchLoop()
	return c, nil
}

func (c *onnxClient) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *onnxClient) predict(ctx context.Context, input []float32) ([]float32, float32, error) {
	req := inferenceRequest{input: input, respChan: make(chan inferenceResponse, 1)}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case <-c.done:
		return nil, 0, fmt.Errorf("%w: session closed", ErrModel)
	}

	select {
	case resp := <-req.respChan:
		return resp.policy, resp.value, resp.err
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

func (c *onnxClient) batchLoop() {
	area := c.size * c.size
	batchInput := make([]float32, 0, c.cfg.BatchSize*inputPlanes*area)
	pending := make([]inferenceRequest, 0, c.cfg.BatchSize)

	ticker := time.NewTicker(c.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(pending) > 0 {
			c.runBatch(pending, batchInput)
			pending = pending[:0]
			batchInput = batchInput[:0]
		}
	}

	for {
		select {
		case <-c.done:
			failBatch(pending, errors.New("session closed"))
			if err := c.session.Destroy(); err != nil {
				log.Warn().Msgf("failed to destroy onnx session: %v", err)
			}
			return
		case req := <-c.requests:
			pending = append(pending, req)
			batchInput = append(batchInput, req.input...)
			if len(pending) >= c.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (c *onnxClient) runBatch(requests []inferenceRequest, batchInput []float32) {
	n := int64(len(requests))
	area := int64(c.size * c.size)

	inputTensor, err := ort.NewTensor(ort.NewShape(n, inputPlanes, int64(c.size), int64(c.size)), batchInput)
	if err != nil {
		failBatch(requests, err)
		return
	}
	defer inputTensor.Destroy()

	policyTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, area))
	if err != nil {
		failBatch(requests, err)
		return
	}
	defer policyTensor.Destroy()

	valueTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, 1))
	if err != nil {
		failBatch(requests, err)
		return
	}
	defer valueTensor.Destroy()

	if err := c.session.Run([]ort.Value{inputTensor}, []ort.Value{policyTensor, valueTensor}); err != nil {
		failBatch(requests, err)
		return
	}

	policyData := policyTensor.GetData()
	valueData := valueTensor.GetData()
	for i, req := range requests {
		policy := make([]float32, area)
		copy(policy, policyData[int64(i)*area:int64(i+1)*area])
		req.respChan <- inferenceResponse{policy: policy, value: valueData[i]}
	}
}

func failBatch(requests []inferenceRequest, err error) {
	for _, req := range requests {
		req.respChan <- inferenceResponse{err: fmt.Errorf("%w: %w", ErrModel, err)}
	}
}
