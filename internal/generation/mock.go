package generation

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/google/uuid"

	"mediagen/internal/domain"
)

// MockOptions tunes the in-process fake provider.
type MockOptions struct {
	// PollsUntilDone is how many polls report processing before the
	// prediction succeeds. Zero means the first poll succeeds.
	PollsUntilDone int
	// FailSubmission makes every Submit return a transient error.
	FailSubmission bool
	// FailGeneration makes predictions end in an external failure.
	FailGeneration bool
}

// MockClient simulates the generation service without network access. It
// is selected by GENERATION_PROVIDER=mock and is the default for
// development environments.
type MockClient struct {
	opts MockOptions

	mu    sync.Mutex
	polls map[string]int
}

func NewMockClient(opts MockOptions) *MockClient {
	return &MockClient{opts: opts, polls: make(map[string]int)}
}

func (c *MockClient) Submit(ctx context.Context, model string, input SubmitInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.Transient("submission", err)
	}
	if input.Prompt == "" {
		return "", domain.Fatal("submission", domain.ErrInvalidPrompt)
	}
	if c.opts.FailSubmission {
		return "", domain.Transient("submission", errors.New("mock: simulated submission failure"))
	}
	handle := "mock-" + uuid.NewString()
	c.mu.Lock()
	c.polls[handle] = 0
	c.mu.Unlock()
	return handle, nil
}

func (c *MockClient) Poll(ctx context.Context, handle string) (PollResult, error) {
	if err := ctx.Err(); err != nil {
		return PollResult{}, domain.Transient("external generation", err)
	}
	c.mu.Lock()
	count := c.polls[handle]
	c.polls[handle] = count + 1
	c.mu.Unlock()

	if count < c.opts.PollsUntilDone {
		return PollResult{Status: StatusProcessing}, nil
	}
	if c.opts.FailGeneration {
		return PollResult{Status: StatusFailed, Error: "mock: simulated generation failure"}, nil
	}
	return PollResult{
		Status: StatusSucceeded,
		Output: []string{fmt.Sprintf("https://mock.delivery/%s.png", handle)},
	}, nil
}

func (c *MockClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Transient("download", err)
	}
	return placeholderPNG(), nil
}

// placeholderPNG renders a minimal valid 8x8 gray PNG so downstream
// consumers always receive a decodable image.
func placeholderPNG() []byte {
	const size = 8
	var raw bytes.Buffer
	for y := 0; y < size; y++ {
		raw.WriteByte(0) // filter: none
		for x := 0; x < size; x++ {
			raw.Write([]byte{0x64, 0x96, 0xc8})
		}
	}
	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	_, _ = zw.Write(raw.Bytes())
	_ = zw.Close()

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], size)
	binary.BigEndian.PutUint32(ihdr[4:8], size)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // color type: truecolor

	var out bytes.Buffer
	out.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	writeChunk(&out, "IHDR", ihdr)
	writeChunk(&out, "IDAT", idat.Bytes())
	writeChunk(&out, "IEND", nil)
	return out.Bytes()
}

func writeChunk(w *bytes.Buffer, typ string, data []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	w.Write(length[:])
	w.WriteString(typ)
	w.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	w.Write(sum[:])
}

var _ Client = (*MockClient)(nil)
