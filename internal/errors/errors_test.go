package errors

import (
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestGroupBases(t *testing.T) {
	if OK != 0 || VariantInvalidType != 100 || StreamFailed != 200 ||
		EJSONUnexpectedCharacter != 1100 || MarkupUnexpectedNullCharacter != 1200 ||
		HTMLBadSelector != 1300 || ExecutorNotImplemented != 2400 {
		t.Fatal("group base offsets drifted")
	}
	if NrGeneric != 28 {
		t.Fatalf("NrGeneric = %d", NrGeneric)
	}
	if NrVariant != 2 || NrStream != 8 || NrExecutor != 4 {
		t.Fatalf("group counts drifted: %d %d %d", NrVariant, NrStream, NrExecutor)
	}
}

func TestMessages(t *testing.T) {
	if Message(OK) != "Ok" {
		t.Fatalf("OK message = %q", Message(OK))
	}
	if Message(Duplicated) != "Duplicated" {
		t.Fatalf("Duplicated message = %q", Message(Duplicated))
	}
	if Message(Code(99999)) == "" {
		t.Fatal("unknown code yielded empty message")
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != OK {
		t.Fatal("nil error is not OK")
	}
	err := Errorf(BadEncoding, "decoding %s", "input")
	if CodeOf(err) != BadEncoding {
		t.Fatalf("CodeOf(wrapped) = %v", CodeOf(err))
	}
	err = pkgerrors.Wrap(err, "outer layer")
	if CodeOf(err) != BadEncoding {
		t.Fatalf("CodeOf(double wrapped) = %v", CodeOf(err))
	}
	if CodeOf(pkgerrors.New("plain")) != Unknown {
		t.Fatal("foreign error did not map to Unknown")
	}
}

func TestLastErrorSlot(t *testing.T) {
	ClearLast()
	if Last() != OK {
		t.Fatal("cleared slot not OK")
	}
	SetLast(WrongArgs)
	if Last() != WrongArgs {
		t.Fatalf("Last = %v", Last())
	}
	ClearLast()
}
