// Code generated by MockGen. DO NOT EDIT.
// Source: policy-rag/internal/vectorstore (interfaces: VectorIndex)
//
// Generated by this command:
//
//	mockgen -destination=mocks/mock_vector_index.go -package=mocks policy-rag/internal/vectorstore VectorIndex
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	vectorstore "policy-rag/internal/vectorstore"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// MockVectorIndex is a mock of VectorIndex interface.
type MockVectorIndex struct {
	ctrl     *gomock.Controller
	recorder *MockVectorIndexMockRecorder
	isgomock struct{}
}

// MockVectorIndexMockRecorder is the mock recorder for MockVectorIndex.
type MockVectorIndexMockRecorder struct {
	mock *MockVectorIndex
}

// NewMockVectorIndex creates a new mock instance.
func NewMockVectorIndex(ctrl *gomock.Controller) *MockVectorIndex {
	mock := &MockVectorIndex{ctrl: ctrl}
	mock.recorder = &MockVectorIndexMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockVectorIndex) EXPECT() *MockVectorIndexMockRecorder {
	return m.recorder
}

// Delete mocks base method.
func (m *MockVectorIndex) Delete(ctx context.Context, collection string, ids []string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Delete", ctx, collection, ids)
	ret0, _ := ret[0].(error)
	return ret0
}

// Delete indicates an expected call of Delete.
func (mr *MockVectorIndexMockRecorder) Delete(ctx, collection, ids any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Delete", reflect.TypeOf((*MockVectorIndex)(nil).Delete), ctx, collection, ids)
}

// Search mocks base method.
func (m *MockVectorIndex) Search(ctx context.Context, collection string, query []float32, k int) ([]vectorstore.Neighbor, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Search", ctx, collection, query, k)
	ret0, _ := ret[0].([]vectorstore.Neighbor)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Search indicates an expected call of Search.
func (mr *MockVectorIndexMockRecorder) Search(ctx, collection, query, k any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Search", reflect.TypeOf((*MockVectorIndex)(nil).Search), ctx, collection, query, k)
}

// Upsert mocks base method.
func (m *MockVectorIndex) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Upsert", ctx, collection, points)
	ret0, _ := ret[0].(error)
	return ret0
}

// Upsert indicates an expected call of Upsert.
func (mr *MockVectorIndexMockRecorder) Upsert(ctx, collection, points any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Upsert", reflect.TypeOf((*MockVectorIndex)(nil).Upsert), ctx, collection, points)
}
