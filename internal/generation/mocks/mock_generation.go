// Code generated by MockGen. DO NOT EDIT.
// Source: policy-rag/internal/generation (interfaces: CompletionClient,AnswerService)
//
// Generated by this command:
//
//	mockgen -destination=mocks/mock_generation.go -package=mocks policy-rag/internal/generation CompletionClient,AnswerService
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	generation "policy-rag/internal/generation"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// MockCompletionClient is a mock of CompletionClient interface.
type MockCompletionClient struct {
	ctrl     *gomock.Controller
	recorder *MockCompletionClientMockRecorder
	isgomock struct{}
}

// MockCompletionClientMockRecorder is the mock recorder for MockCompletionClient.
type MockCompletionClientMockRecorder struct {
	mock *MockCompletionClient
}

// NewMockCompletionClient creates a new mock instance.
func NewMockCompletionClient(ctrl *gomock.Controller) *MockCompletionClient {
	mock := &MockCompletionClient{ctrl: ctrl}
	mock.recorder = &MockCompletionClientMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCompletionClient) EXPECT() *MockCompletionClientMockRecorder {
	return m.recorder
}

// Complete mocks base method.
func (m *MockCompletionClient) Complete(ctx context.Context, prompt string) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Complete", ctx, prompt)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Complete indicates an expected call of Complete.
func (mr *MockCompletionClientMockRecorder) Complete(ctx, prompt any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Complete", reflect.TypeOf((*MockCompletionClient)(nil).Complete), ctx, prompt)
}

// MockAnswerService is a mock of AnswerService interface.
type MockAnswerService struct {
	ctrl     *gomock.Controller
	recorder *MockAnswerServiceMockRecorder
	isgomock struct{}
}

// MockAnswerServiceMockRecorder is the mock recorder for MockAnswerService.
type MockAnswerServiceMockRecorder struct {
	mock *MockAnswerService
}

// NewMockAnswerService creates a new mock instance.
func NewMockAnswerService(ctrl *gomock.Controller) *MockAnswerService {
	mock := &MockAnswerService{ctrl: ctrl}
	mock.recorder = &MockAnswerServiceMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAnswerService) EXPECT() *MockAnswerServiceMockRecorder {
	return m.recorder
}

// Answer mocks base method.
func (m *MockAnswerService) Answer(ctx context.Context, req generation.Request) (generation.PolicyResponse, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Answer", ctx, req)
	ret0, _ := ret[0].(generation.PolicyResponse)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Answer indicates an expected call of Answer.
func (mr *MockAnswerServiceMockRecorder) Answer(ctx, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Answer", reflect.TypeOf((*MockAnswerService)(nil).Answer), ctx, req)
}
