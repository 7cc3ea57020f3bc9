// Package packetconnmock is a go.uber.org/mock/gomock mock of net.PacketConn,
// in the generated-mockgen shape the pack's validatorsmock wraps
// (controller + EXPECT() recorder), for tests that need to assert on call
// arguments or inject specific errors rather than just queue/record
// datagrams like internal/transporttest.PacketConn does.
package packetconnmock

import (
	"net"
	"reflect"
	"time"

	"go.uber.org/mock/gomock"
)

// PacketConn is a mock of net.PacketConn.
type PacketConn struct {
	ctrl     *gomock.Controller
	recorder *PacketConnMockRecorder
}

// PacketConnMockRecorder is the recorder for PacketConn.
type PacketConnMockRecorder struct {
	mock *PacketConn
}

var _ net.PacketConn = (*PacketConn)(nil)

// NewPacketConn creates a new mock instance.
func NewPacketConn(ctrl *gomock.Controller) *PacketConn {
	mock := &PacketConn{ctrl: ctrl}
	mock.recorder = &PacketConnMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *PacketConn) EXPECT() *PacketConnMockRecorder {
	return m.recorder
}

func (m *PacketConn) ReadFrom(p []byte) (int, net.Addr, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReadFrom", p)
	n, _ := ret[0].(int)
	addr, _ := ret[1].(net.Addr)
	err, _ := ret[2].(error)
	return n, addr, err
}

func (mr *PacketConnMockRecorder) ReadFrom(p interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReadFrom", reflect.TypeOf((*PacketConn)(nil).ReadFrom), p)
}

func (m *PacketConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "WriteTo", p, addr)
	n, _ := ret[0].(int)
	err, _ := ret[1].(error)
	return n, err
}

func (mr *PacketConnMockRecorder) WriteTo(p, addr interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "WriteTo", reflect.TypeOf((*PacketConn)(nil).WriteTo), p, addr)
}

func (m *PacketConn) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	err, _ := ret[0].(error)
	return err
}

func (mr *PacketConnMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*PacketConn)(nil).Close))
}

func (m *PacketConn) LocalAddr() net.Addr {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LocalAddr")
	addr, _ := ret[0].(net.Addr)
	return addr
}

func (mr *PacketConnMockRecorder) LocalAddr() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LocalAddr", reflect.TypeOf((*PacketConn)(nil).LocalAddr))
}

func (m *PacketConn) SetDeadline(t time.Time) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetDeadline", t)
	err, _ := ret[0].(error)
	return err
}

func (mr *PacketConnMockRecorder) SetDeadline(t interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetDeadline", reflect.TypeOf((*PacketConn)(nil).SetDeadline), t)
}

func (m *PacketConn) SetReadDeadline(t time.Time) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetReadDeadline", t)
	err, _ := ret[0].(error)
	return err
}

func (mr *PacketConnMockRecorder) SetReadDeadline(t interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetReadDeadline", reflect.TypeOf((*PacketConn)(nil).SetReadDeadline), t)
}

func (m *PacketConn) SetWriteDeadline(t time.Time) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetWriteDeadline", t)
	err, _ := ret[0].(error)
	return err
}

func (mr *PacketConnMockRecorder) SetWriteDeadline(t interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetWriteDeadline", reflect.TypeOf((*PacketConn)(nil).SetWriteDeadline), t)
}
