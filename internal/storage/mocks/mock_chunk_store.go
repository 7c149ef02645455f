// Code generated by MockGen. DO NOT EDIT.
// Source: policy-rag/internal/storage (interfaces: ChunkStore)
//
// Generated by this command:
//
//	mockgen -destination=mocks/mock_chunk_store.go -package=mocks policy-rag/internal/storage ChunkStore
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	policy "policy-rag/internal/policy"
	storage "policy-rag/internal/storage"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// MockChunkStore is a mock of ChunkStore interface.
type MockChunkStore struct {
	ctrl     *gomock.Controller
	recorder *MockChunkStoreMockRecorder
	isgomock struct{}
}

// MockChunkStoreMockRecorder is the mock recorder for MockChunkStore.
type MockChunkStoreMockRecorder struct {
	mock *MockChunkStore
}

// NewMockChunkStore creates a new mock instance.
func NewMockChunkStore(ctrl *gomock.Controller) *MockChunkStore {
	mock := &MockChunkStore{ctrl: ctrl}
	mock.recorder = &MockChunkStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockChunkStore) EXPECT() *MockChunkStoreMockRecorder {
	return m.recorder
}

// Count mocks base method.
func (m *MockChunkStore) Count(ctx context.Context) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Count", ctx)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Count indicates an expected call of Count.
func (mr *MockChunkStoreMockRecorder) Count(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Count", reflect.TypeOf((*MockChunkStore)(nil).Count), ctx)
}

// DeleteByDoc mocks base method.
func (m *MockChunkStore) DeleteByDoc(ctx context.Context, docID string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteByDoc", ctx, docID)
	ret0, _ := ret[0].(error)
	return ret0
}

// DeleteByDoc indicates an expected call of DeleteByDoc.
func (mr *MockChunkStoreMockRecorder) DeleteByDoc(ctx, docID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteByDoc", reflect.TypeOf((*MockChunkStore)(nil).DeleteByDoc), ctx, docID)
}

// FetchByIDs mocks base method.
func (m *MockChunkStore) FetchByIDs(ctx context.Context, ids []string, filters policy.Filters) (map[string]*storage.ChunkRecord, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchByIDs", ctx, ids, filters)
	ret0, _ := ret[0].(map[string]*storage.ChunkRecord)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchByIDs indicates an expected call of FetchByIDs.
func (mr *MockChunkStoreMockRecorder) FetchByIDs(ctx, ids, filters any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchByIDs", reflect.TypeOf((*MockChunkStore)(nil).FetchByIDs), ctx, ids, filters)
}

// GetByID mocks base method.
func (m *MockChunkStore) GetByID(ctx context.Context, id string) (*storage.ChunkRecord, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*storage.ChunkRecord)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockChunkStoreMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockChunkStore)(nil).GetByID), ctx, id)
}

// Insert mocks base method.
func (m *MockChunkStore) Insert(ctx context.Context, chunk *storage.ChunkRecord) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Insert", ctx, chunk)
	ret0, _ := ret[0].(error)
	return ret0
}

// Insert indicates an expected call of Insert.
func (mr *MockChunkStoreMockRecorder) Insert(ctx, chunk any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Insert", reflect.TypeOf((*MockChunkStore)(nil).Insert), ctx, chunk)
}

// ListIDsByDoc mocks base method.
func (m *MockChunkStore) ListIDsByDoc(ctx context.Context, docID string) ([]string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListIDsByDoc", ctx, docID)
	ret0, _ := ret[0].([]string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListIDsByDoc indicates an expected call of ListIDsByDoc.
func (mr *MockChunkStoreMockRecorder) ListIDsByDoc(ctx, docID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListIDsByDoc", reflect.TypeOf((*MockChunkStore)(nil).ListIDsByDoc), ctx, docID)
}
