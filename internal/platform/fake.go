package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Fake is an in-memory Metadata for tests and offline use.
type Fake struct {
	mu       sync.Mutex
	Objects  map[string]Object
	Records  map[string][]Record
	Deployed []string
	// Calls counts ListObjects and DescribeObject invocations.
	Calls int
	Err   error
}

var _ Metadata = (*Fake)(nil)

func (f *Fake) ListObjects(context.Context) ([]Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]Object, 0, len(f.Objects))
	for _, o := range f.Objects {
		o.Fields = nil
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *Fake) DescribeObject(_ context.Context, name string) (*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	o, ok := f.Objects[name]
	if !ok {
		return nil, fmt.Errorf("object %s not found", name)
	}
	return &o, nil
}

// Query returns the records registered under the exact soql string.
func (f *Fake) Query(_ context.Context, soql string) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Records[soql], nil
}

func (f *Fake) Deploy(_ context.Context, sourceDir string) (DeployResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return DeployResult{Message: f.Err.Error()}, nil
	}
	f.Deployed = append(f.Deployed, sourceDir)
	return DeployResult{Success: true, Message: "Deployment successful"}, nil
}
