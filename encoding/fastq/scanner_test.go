package fastq

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/pkg/errors"
)

const fq = `@NB500956:89:HW2FHBGX2:1:11101:25648:1069 1:N:0:ATCACG
ATACAGGCCTGANCCACTGTGCCCAGNCTANNTNATTANTGAANANAGAATNGTTNTAAATANANNNNNTNTNNNC
+
AAAAAEEEEEEE#EEAEEEEEEEEEE#EEE##E#EEEE#EEEE#E#EEEEE#EEE#EEEAEE#A#####E#E###E
@NB500956:89:HW2FHBGX2:1:11101:13871:1070 1:N:0:ATCACG
CTCAACTCTGAGNCAGACAGAAATACNTTTNNTNTGAGTTACANCNTTCTTTTTCNACATATNCNNNNNTNGNNNT
+
AAAAAEEEEEEE#EEEEEEEEEEEEE#EEE##E#EEEEEEEEE#E#EEEEEEEEE#EAEEEE#A#####E#A###E
@NB500956:89:HW2FHBGX2:1:11101:9975:1070 1:N:0:ATCACG
GAGTAACCACGTNCCCATGGCCACAGNTGANNGNGTCACACCTNANCCGGGAGAGNCAATCCNGNNNNNGNANNNC
+
AAAAAEEEEEEE#EEEEEEEEEAEEE#EEA##E#EEEEEEEE<#E#<EEEEEEEE#<EEEA/#/#####A#E###A
@NB500956:89:HW2FHBGX2:1:11101:20247:1070 1:N:0:ATCACG
GATCGGAAGAGCNCACGTCTGAACTCNAGTNNCNTCCCGATCTNGNATGCCGTCTNCTGCTTNANNNNNANANNNG
+
AAAAAEEEEEEE#EEEEEEEEEEEEE#AEE##E#A////6AE<#E#EEEEEEEEA#A/EE/E#E#####/#E###E
@NB500956:89:HW2FHBGX2:1:11101:17754:1070 1:N:0:ATCACG
CAAGCAACTTACNTTACTTTAGGCTGNAAANNGNCTGCCTGAANTNCCTGCTCACNAATCCCNCNNNNNCNTNNNT
+
AAAAAEEEEEEE#EEAEEEEEEEEEE#EEE##E#EEEEEEEEE#E#EEEEEEEEE#EAEAEA#/#####E#A###E
@NB500956:89:HW2FHBGX2:1:11101:26223:1070 1:N:0:ATCACG
TCAATTTCAGAACTTTTTATTGGTCTNTTCNNGNATTCATCTTNTNCCTGGTTTANTCTTGGNANNNNNTNTNNNT
+
AAAAAEEEEEEEEEEEEEEEEEEEEE#EEA##E#EEEEEEEEE#E#<EAEEEEEE#EEEEEE#E#####E#E###E
`

func stringScanner(s string) *Scanner {
	return NewScanner(bytes.NewReader([]byte(s)), All)
}

func scanErr(s string) error {
	scan := stringScanner(s)
	var r Read
	for scan.Scan(&r) {
	}
	return scan.Err()
}

func TestFASTQ(t *testing.T) {
	s := stringScanner(fq)
	var r Read
	if !s.Scan(&r) {
		t.Fatal(s.Err())
	}
	expect := Read{
		ID:   "@NB500956:89:HW2FHBGX2:1:11101:25648:1069 1:N:0:ATCACG",
		Seq:  "ATACAGGCCTGANCCACTGTGCCCAGNCTANNTNATTANTGAANANAGAATNGTTNTAAATANANNNNNTNTNNNC",
		Unk:  "+",
		Qual: "AAAAAEEEEEEE#EEAEEEEEEEEEE#EEE##E#EEEE#EEEE#E#EEEEE#EEE#EEEAEE#A#####E#E###E",
	}
	if got, want := r, expect; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	var n int
	for s.Scan(&r) {
		n++
	}
	if got, want := n, 5; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := s.Err(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestBadFASTQ(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want error
	}{
		{"12312#", ErrInvalid},
		{"@1234\n123", ErrShort},
		{"@1234\nACGT\n-\nAAAA\n", ErrInvalid},
		{"@1234\nACGT\n+\nAAA\n", ErrInvalid},
	} {
		if got := errors.Cause(scanErr(tt.in)); got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
		}
	}
	err := scanErr("@r1\nAC\n+\nAA\n@r2\nACGT\n+\nAAA\n")
	expect.True(t, strings.Contains(err.Error(), "line 8"), "%v", err)
}

func TestName(t *testing.T) {
	for _, tt := range []struct{ id, want string }{
		{"@NB500956:89:HW2FHBGX2:1:11101:25648:1069 1:N:0:ATCACG", "NB500956:89:HW2FHBGX2:1:11101:25648:1069"},
		{"@read1", "read1"},
		{"@read2\tlane=3", "read2"},
		{"read3", "read3"},
	} {
		r := Read{ID: tt.id}
		expect.EQ(t, r.Name(), tt.want)
	}
}

func TestCRLF(t *testing.T) {
	s := stringScanner("@r1 x\r\nACGT\r\n+\r\nIIII\r\n")
	var r Read
	expect.True(t, s.Scan(&r))
	expect.EQ(t, r, Read{ID: "@r1 x", Seq: "ACGT", Unk: "+", Qual: "IIII"})
	expect.False(t, s.Scan(&r))
	expect.NoError(t, s.Err())
}

func TestFields(t *testing.T) {
	s := NewScanner(strings.NewReader(fq), ID|Seq)
	var r Read
	expect.True(t, s.Scan(&r))
	expect.EQ(t, r.Qual, "")
	expect.EQ(t, r.Unk, "")
	expect.EQ(t, len(r.Seq), 76)
}

func TestPairScanner(t *testing.T) {
	r2 := strings.Replace(fq, " 1:N:0", " 2:N:0", -1)
	p := NewPairScanner(strings.NewReader(fq), strings.NewReader(r2), All)
	var a, b Read
	var n int
	for p.Scan(&a, &b) {
		expect.EQ(t, a.Name(), b.Name())
		n++
	}
	expect.NoError(t, p.Err())
	expect.EQ(t, n, 6)

	short := fq[:strings.Index(fq, "@NB500956:89:HW2FHBGX2:1:11101:9975")]
	p = NewPairScanner(strings.NewReader(fq), strings.NewReader(short), All)
	for p.Scan(&a, &b) {
	}
	expect.EQ(t, p.Err(), ErrDiscordant)
}

func TestWriter(t *testing.T) {
	var (
		s = stringScanner(fq)
		b = new(bytes.Buffer)
		w = NewWriter(b)
		r Read
	)
	for s.Scan(&r) {
		if err := w.Write(&r); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	if got, want := b.String(), fq; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
