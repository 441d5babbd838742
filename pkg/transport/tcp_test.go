// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/radicalsystems/mistctl/pkg/params"
)

// loopback starts a TCP listener and returns its address and the first
// accepted connection
func loopback(t *testing.T) (string, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()
	return ln.Addr().String(), accepted
}

func tcpParams(t *testing.T, addr string, timeout time.Duration) params.Parameters {
	t.Helper()
	p, err := params.NewBuilder("").Target(addr).ReceiveTimeout(timeout).Build()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestTCP_ReadWrite(t *testing.T) {
	addr, accepted := loopback(t)

	d := NewTCP(tcpParams(t, addr, 50*time.Millisecond))
	if err := d.Open(); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer d.Close()
	peer := <-accepted

	if d.Name() != addr {
		t.Errorf("Name() = %q, want target %q", d.Name(), addr)
	}

	msg := []byte("<Ping />\r\n")
	if n, err := d.Write(msg); err != nil || n != len(msg) {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	got := make([]byte, len(msg))
	if _, err := io.ReadFull(peer, got); err != nil || string(got) != string(msg) {
		t.Errorf("peer received %q, %v", got, err)
	}

	if n, err := d.Read(make([]byte, 8)); n != TimedOut || err != nil {
		t.Errorf("Read() with no data = %d, %v, want TimedOut", n, err)
	}

	peer.Write([]byte("<Ping />"))
	buf := make([]byte, 64)
	n, err := d.Read(buf)
	if err != nil || string(buf[:n]) != "<Ping />" {
		t.Errorf("Read() = %d %q, %v", n, buf[:max(n, 0)], err)
	}

	if rc, err := d.IoControl(IoSetRTS, 1); rc != -1 || err != nil {
		t.Errorf("IoControl() = %d, %v, want -1", rc, err)
	}
}

func TestTCP_Flush(t *testing.T) {
	addr, accepted := loopback(t)

	d := NewTCP(tcpParams(t, addr, 100*time.Millisecond))
	if err := d.Open(); err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	peer := <-accepted

	peer.Write([]byte("stale bytes"))
	time.Sleep(20 * time.Millisecond)
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	peer.Write([]byte("fresh"))
	buf := make([]byte, 64)
	n, err := d.Read(buf)
	if err != nil || string(buf[:n]) != "fresh" {
		t.Errorf("Read() after Flush() = %q, %v", buf[:max(n, 0)], err)
	}
}

func TestTCP_PeerClose(t *testing.T) {
	addr, accepted := loopback(t)

	d := NewTCP(tcpParams(t, addr, time.Second))
	if err := d.Open(); err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	(<-accepted).Close()

	_, err := d.Read(make([]byte, 8))
	var connErr *ConnectionError
	if !errors.As(err, &connErr) || !errors.Is(err, io.EOF) {
		t.Errorf("Read() after peer close = %v, want ConnectionError wrapping EOF", err)
	}
}

func TestTCP_OpenRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	d := NewTCP(tcpParams(t, addr, 200*time.Millisecond))
	err = d.Open()
	var connErr *ConnectionError
	if !errors.As(err, &connErr) || connErr.Op != "open" {
		t.Errorf("Open() = %v, want open ConnectionError", err)
	}
	if d.IsOpen() {
		t.Error("IsOpen() = true after failed Open()")
	}
}

func TestTCP_CloseIsIdempotent(t *testing.T) {
	addr, _ := loopback(t)

	d := NewTCP(tcpParams(t, addr, time.Second))
	if err := d.Close(); err != nil {
		t.Errorf("Close() before Open() = %v", err)
	}
	if err := d.Open(); err != nil {
		t.Fatal(err)
	}
	if err := d.EnableEvents(); err != nil {
		t.Errorf("EnableEvents() = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
