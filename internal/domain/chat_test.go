package domain

import "testing"

func TestParseChatFrame(t *testing.T) {
	t.Parallel()

	cases := []struct {
		frame  string
		want   ChatMessage
		wantOK bool
	}{
		{frame: "Candidate: Hello there", want: ChatMessage{Author: AuthorCandidate, Text: "Hello there"}, wantOK: true},
		{frame: "Interviewer: Tell me about yourself.", want: ChatMessage{Author: AuthorInterviewer, Text: "Tell me about yourself."}, wantOK: true},
		{frame: "Interviewer: ", want: ChatMessage{Author: AuthorInterviewer, Text: ""}, wantOK: true},
		{frame: "Unknown: hi", wantOK: false},
		{frame: "Interviewer:", wantOK: false},
		{frame: "Candidate hi", wantOK: false},
		{frame: "", wantOK: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.frame, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseChatFrame(tc.frame)
			if ok != tc.wantOK {
				t.Fatalf("unexpected ok=%v for %q", ok, tc.frame)
			}
			if ok && got != tc.want {
				t.Fatalf("unexpected message: %+v", got)
			}
		})
	}
}

func TestAuthorTag(t *testing.T) {
	t.Parallel()

	if got := AuthorCandidate.Tag(); got != "Candidate:" {
		t.Fatalf("unexpected tag: %q", got)
	}
	if _, ok := AuthorFromTag("Candidate"); ok {
		t.Fatalf("expected tag without colon to be rejected")
	}
}

func TestRecordingStateCanRecord(t *testing.T) {
	t.Parallel()

	allowed := map[RecordingState]bool{
		RecordingStateNotStarted:           true,
		RecordingStatePermissionDenied:     true,
		RecordingStateCompleted:            true,
		RecordingStateError:                true,
		RecordingStateWaitingForPermission: false,
		RecordingStateRecording:            false,
		RecordingStateProcessing:           false,
		RecordingStateUseTextAlternative:   false,
		RecordingStateClosed:               false,
	}
	for state, want := range allowed {
		if got := state.CanRecord(); got != want {
			t.Fatalf("%s: CanRecord=%v, want %v", state, got, want)
		}
	}
}
