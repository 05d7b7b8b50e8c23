package netio

import (
	"net"
	"testing"
	"time"
)

func TestReadLineStripsTelnetNegotiation(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	conn := NewConn(server)

	go func() {
		// IAC WILL ECHO, IAC DO LINEMODE, then the actual line.
		client.Write([]byte{iac, will, 1})
		client.Write([]byte{iac, do, 34})
		client.Write([]byte("look\r\n"))
	}()

	line, err := conn.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "look" {
		t.Errorf("line = %q, want %q", line, "look")
	}
}

func TestReadLineTreatsDoubleIACAsLiteralByte(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	conn := NewConn(server)

	go func() {
		client.Write([]byte{'a'})
		client.Write([]byte{iac, iac})
		client.Write([]byte("b\r\n"))
	}()

	line, err := conn.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "a\xffb" {
		t.Errorf("line = %q, want %q (IAC IAC kept as one literal 0xFF byte)", line, "a\xffb")
	}
}

func TestSendWritesCRLFTerminatedLine(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	conn := NewConn(server)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := client.Read(buf)
		done <- buf[:n]
	}()

	if err := conn.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case got := <-done:
		if string(got) != "hello\r\n" {
			t.Errorf("wrote %q, want %q", got, "hello\r\n")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for write")
	}
}

func TestListenAcceptRoundTrip(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	accepted := make(chan *Conn, 1)
	go func() {
		c, err := srv.Accept()
		if err != nil {
			t.Error(err)
			return
		}
		accepted <- c
	}()

	client, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	select {
	case c := <-accepted:
		defer c.Close()
		if c.RemoteAddr() == "" {
			t.Error("expected a non-empty remote address")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Accept")
	}
}

func TestCloseUnblocksAccept(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := srv.Accept()
		errCh <- err
	}()

	srv.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected Accept to return an error after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Accept to unblock")
	}
}
