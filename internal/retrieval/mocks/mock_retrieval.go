// Code generated by MockGen. DO NOT EDIT.
// Source: policy-rag/internal/retrieval (interfaces: Embedder,VectorSearcher,Retriever)
//
// Generated by this command:
//
//	mockgen -destination=mocks/mock_retrieval.go -package=mocks policy-rag/internal/retrieval Embedder,VectorSearcher,Retriever
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	retrieval "policy-rag/internal/retrieval"
	vectorstore "policy-rag/internal/vectorstore"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// MockEmbedder is a mock of Embedder interface.
type MockEmbedder struct {
	ctrl     *gomock.Controller
	recorder *MockEmbedderMockRecorder
	isgomock struct{}
}

// MockEmbedderMockRecorder is the mock recorder for MockEmbedder.
type MockEmbedderMockRecorder struct {
	mock *MockEmbedder
}

// NewMockEmbedder creates a new mock instance.
func NewMockEmbedder(ctrl *gomock.Controller) *MockEmbedder {
	mock := &MockEmbedder{ctrl: ctrl}
	mock.recorder = &MockEmbedderMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockEmbedder) EXPECT() *MockEmbedderMockRecorder {
	return m.recorder
}

// EmbedText mocks base method.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "EmbedText", ctx, text)
	ret0, _ := ret[0].([]float32)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// EmbedText indicates an expected call of EmbedText.
func (mr *MockEmbedderMockRecorder) EmbedText(ctx, text any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "EmbedText", reflect.TypeOf((*MockEmbedder)(nil).EmbedText), ctx, text)
}

// MockVectorSearcher is a mock of VectorSearcher interface.
type MockVectorSearcher struct {
	ctrl     *gomock.Controller
	recorder *MockVectorSearcherMockRecorder
	isgomock struct{}
}

// MockVectorSearcherMockRecorder is the mock recorder for MockVectorSearcher.
type MockVectorSearcherMockRecorder struct {
	mock *MockVectorSearcher
}

// NewMockVectorSearcher creates a new mock instance.
func NewMockVectorSearcher(ctrl *gomock.Controller) *MockVectorSearcher {
	mock := &MockVectorSearcher{ctrl: ctrl}
	mock.recorder = &MockVectorSearcherMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockVectorSearcher) EXPECT() *MockVectorSearcherMockRecorder {
	return m.recorder
}

// Search mocks base method.
func (m *MockVectorSearcher) Search(ctx context.Context, collection string, query []float32, k int) ([]vectorstore.Neighbor, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Search", ctx, collection, query, k)
	ret0, _ := ret[0].([]vectorstore.Neighbor)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Search indicates an expected call of Search.
func (mr *MockVectorSearcherMockRecorder) Search(ctx, collection, query, k any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Search", reflect.TypeOf((*MockVectorSearcher)(nil).Search), ctx, collection, query, k)
}

// MockRetriever is a mock of Retriever interface.
type MockRetriever struct {
	ctrl     *gomock.Controller
	recorder *MockRetrieverMockRecorder
	isgomock struct{}
}

// MockRetrieverMockRecorder is the mock recorder for MockRetriever.
type MockRetrieverMockRecorder struct {
	mock *MockRetriever
}

// NewMockRetriever creates a new mock instance.
func NewMockRetriever(ctrl *gomock.Controller) *MockRetriever {
	mock := &MockRetriever{ctrl: ctrl}
	mock.recorder = &MockRetrieverMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRetriever) EXPECT() *MockRetrieverMockRecorder {
	return m.recorder
}

// Retrieve mocks base method.
func (m *MockRetriever) Retrieve(ctx context.Context, params retrieval.Params) ([]retrieval.Result, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Retrieve", ctx, params)
	ret0, _ := ret[0].([]retrieval.Result)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Retrieve indicates an expected call of Retrieve.
func (mr *MockRetrieverMockRecorder) Retrieve(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Retrieve", reflect.TypeOf((*MockRetriever)(nil).Retrieve), ctx, params)
}
