package server

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/linechat/pkg/protocol"
)

func TestRegistryLoginAnnouncesAndRefreshesRoster(t *testing.T) {
	srv := newTestServer(t)
	loginPiped(t, srv, "anant", "rohan", "aman")

	if diff := cmp.Diff([]string{"anant", "rohan", "aman"}, srv.Registry().Online()); diff != "" {
		t.Errorf("Online mismatch (-want +got):\n%s", diff)
	}
	if got := srv.Registry().Len(); got != 3 {
		t.Errorf("Len = %d, want 3", got)
	}
}

func TestRegistryBroadcastExcludesSender(t *testing.T) {
	srv := newTestServer(t)
	ps := loginPiped(t, srv, "anant", "rohan", "aman")
	anant, rohan, aman := ps[0], ps[1], ps[2]

	n := srv.Registry().Broadcast(protocol.Chat("rohan", "hello all"), rohan.sess)
	if n != 2 {
		t.Errorf("Broadcast delivered to %d sessions, want 2", n)
	}
	anant.peer.expect("rohan: hello all")
	aman.peer.expect("rohan: hello all")
	quiet(t, rohan.sess, rohan.peer)
}

func TestRegistryBroadcastSkipsUnauthenticated(t *testing.T) {
	srv := newTestServer(t)
	ps := loginPiped(t, srv, "anant")
	guest, guestPeer := pipeSession(t, srv, "guest")

	if n := srv.Registry().Broadcast("hi", nil); n != 1 {
		t.Errorf("Broadcast delivered to %d sessions, want 1", n)
	}
	ps[0].peer.expect("hi")
	quiet(t, guest, guestPeer)
}

func TestRegistryRoutePrivate(t *testing.T) {
	srv := newTestServer(t)
	ps := loginPiped(t, srv, "anant", "rohan", "aman")
	anant, rohan, aman := ps[0], ps[1], ps[2]

	if !srv.Registry().RoutePrivate("secret hi", "aman", anant.sess) {
		t.Fatal("RoutePrivate to an online user reported a miss")
	}
	aman.peer.expect("(Private from anant): secret hi")
	quiet(t, anant.sess, anant.peer)
	quiet(t, rohan.sess, rohan.peer)

	if srv.Registry().RoutePrivate("hi", "ghost", anant.sess) {
		t.Fatal("RoutePrivate to an unknown user reported delivery")
	}
	anant.peer.expect("User 'ghost' is not online.")
	quiet(t, rohan.sess, rohan.peer)
	quiet(t, aman.sess, aman.peer)
}

func TestRegistryRoutePrivateIgnoresUnauthenticatedNames(t *testing.T) {
	srv := newTestServer(t)
	ps := loginPiped(t, srv, "anant")
	pipeSession(t, srv, "guest")

	// A connected but anonymous session has no name to match.
	if srv.Registry().RoutePrivate("hi", "", ps[0].sess) {
		t.Fatal("RoutePrivate matched an unauthenticated session")
	}
	ps[0].peer.expect("User '' is not online.")
}

func TestRegistryRemoveAnnouncesLeave(t *testing.T) {
	srv := newTestServer(t)
	ps := loginPiped(t, srv, "anant", "rohan", "aman")
	anant, rohan, aman := ps[0], ps[1], ps[2]

	aman.sess.Close()

	for _, p := range []piped{anant, rohan} {
		p.peer.expect("aman has left the chat.", "ONLINE_USERS:anant,rohan")
	}
	if diff := cmp.Diff([]string{"anant", "rohan"}, srv.Registry().Online()); diff != "" {
		t.Errorf("Online mismatch (-want +got):\n%s", diff)
	}
	if srv.Registry().Remove(aman.sess) {
		t.Error("second Remove reported the session as registered")
	}
	if got := srv.Metrics().TotalDisconnects.Load(); got != 1 {
		t.Errorf("TotalDisconnects = %d, want 1", got)
	}
}

func TestRegistryRemoveUnauthenticatedIsSilent(t *testing.T) {
	srv := newTestServer(t)
	ps := loginPiped(t, srv, "anant")
	guest, _ := pipeSession(t, srv, "guest")

	guest.Close()
	guest.Close()

	quiet(t, ps[0].sess, ps[0].peer)
	if got := srv.Registry().Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
}

func TestRegistryLoginRejectsDuplicateName(t *testing.T) {
	srv := newTestServer(t)
	ps := loginPiped(t, srv, "anant")
	dup, dupPeer := pipeSession(t, srv, "dup")

	if err := srv.Registry().Login(dup, "anant"); !errors.Is(err, ErrAlreadyOnline) {
		t.Fatalf("Login error = %v, want ErrAlreadyOnline", err)
	}
	if dup.authenticated {
		t.Error("rejected session became authenticated")
	}
	quiet(t, dup, dupPeer)
	quiet(t, ps[0].sess, ps[0].peer)
}

func TestRegistryLoginUnregistered(t *testing.T) {
	srv := newTestServer(t)
	sess, _ := pipeSession(t, srv, "gone")
	srv.Registry().Remove(sess)

	if err := srv.Registry().Login(sess, "anant"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Login error = %v, want ErrNotRegistered", err)
	}
}

func TestRegistryAddIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	sess, _ := pipeSession(t, srv, "a")
	srv.Registry().Add(sess)
	if got := srv.Registry().Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
}

func TestRegistryRefreshRoster(t *testing.T) {
	srv := newTestServer(t)
	ps := loginPiped(t, srv, "anant", "rohan")

	srv.Registry().RefreshRoster()
	for _, p := range ps {
		p.peer.expect("ONLINE_USERS:anant,rohan")
	}
}
