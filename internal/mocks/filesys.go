package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/lc/hostres/internal/filesys"
)

var _ filesys.ReadFS = (*MockReadFS)(nil)

// MockReadFS is a testify mock of filesys.ReadFS.
type MockReadFS struct {
	mock.Mock
}

// ReadFile mocks the ReadFile method.
func (m *MockReadFS) ReadFile(p string) ([]byte, error) {
	args := m.Called(p)
	// Need to handle potential nil slice return
	var data []byte
	if args.Get(0) != nil {
		data = args.Get(0).([]byte)
	}
	return data, args.Error(1)
}
