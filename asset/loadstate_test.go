package asset

import "testing"

func TestLoadStateTransitions(t *testing.T) {
	allowed := map[LoadState][]LoadState{
		Unloaded: {Loading, Deleted},
		Loading:  {Loaded, Failed, Deleted},
		Loaded:   {Loading, Unloaded, Deleted},
		Failed:   {Loading, Unloaded, Deleted},
		Deleted:  {},
	}

	all := []LoadState{Unloaded, Loading, Loaded, Failed, Deleted}
	for from, nexts := range allowed {
		wantAllowed := map[LoadState]bool{}
		for _, n := range nexts {
			wantAllowed[n] = true
		}
		for _, to := range all {
			got := from.CanTransition(to)
			want := wantAllowed[to]
			if got != want {
				t.Errorf("%s -> %s: CanTransition = %v, want %v", from, to, got, want)
			}
		}
	}
}
