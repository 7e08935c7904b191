package transport

import (
	"bytes"
	"net"
	"testing"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	client, server := net.Pipe()

	payload := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF}, 5000)

	errCh := make(chan error, 1)
	go func() {
		_, err := Send(client, bytes.NewReader(payload))
		client.Close()
		errCh <- err
	}()

	var got bytes.Buffer
	if _, err := Receive(&got, server); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if !bytes.Equal(got.Bytes(), payload) {
		t.Fatal("received payload does not match sent payload")
	}
}

func TestReceiveObservesCloseAsEOF(t *testing.T) {
	client, server := net.Pipe()

	go func() {
		client.Write([]byte("partial"))
		client.Close()
	}()

	var got bytes.Buffer
	n, err := Receive(&got, server)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if n != 7 {
		t.Fatalf("got %d bytes, want 7", n)
	}
}
