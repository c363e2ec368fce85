package salt

import (
	"testing"

	"github.com/routeforge/dispatch-core/codec"
)

func mkAddr(b byte) codec.Address {
	var a codec.Address
	a[19] = b
	return a
}

func mkDigest(b byte) codec.Digest {
	var d codec.Digest
	d[0] = b
	return d
}

// Property C: salt determinism across independent invocations.
func TestPropertyC_UniversalSaltDeterministic(t *testing.T) {
	deployer := mkAddr(0xAB)
	content := mkDigest(0xCD)

	a, err := UniversalSalt("payrox", deployer, content, 7, "v1")
	if err != nil {
		t.Fatalf("UniversalSalt error: %v", err)
	}
	b, err := UniversalSalt("payrox", deployer, content, 7, "v1")
	if err != nil {
		t.Fatalf("UniversalSalt error: %v", err)
	}
	if a != b {
		t.Fatalf("UniversalSalt not deterministic: %x != %x", a, b)
	}
}

func TestUniversalSalt_SensitiveToEveryField(t *testing.T) {
	deployer := mkAddr(0xAB)
	content := mkDigest(0xCD)
	base, err := UniversalSalt("payrox", deployer, content, 7, "v1")
	if err != nil {
		t.Fatalf("UniversalSalt error: %v", err)
	}

	variants := []codec.Digest{}
	mustSalt := func(tag string, d codec.Address, c codec.Digest, n uint64, v string) codec.Digest {
		s, err := UniversalSalt(tag, d, c, n, v)
		if err != nil {
			t.Fatalf("UniversalSalt error: %v", err)
		}
		return s
	}
	variants = append(variants, mustSalt("payrox2", deployer, content, 7, "v1"))
	variants = append(variants, mustSalt("payrox", mkAddr(0xAC), content, 7, "v1"))
	variants = append(variants, mustSalt("payrox", deployer, mkDigest(0xCE), 7, "v1"))
	variants = append(variants, mustSalt("payrox", deployer, content, 8, "v1"))
	variants = append(variants, mustSalt("payrox", deployer, content, 7, "v2"))

	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collided with base salt", i)
		}
	}
}

func TestUniversalSalt_RejectsEmptyFields(t *testing.T) {
	if _, err := UniversalSalt("", mkAddr(1), mkDigest(1), 1, "v1"); err == nil {
		t.Fatalf("expected error for empty project tag")
	}
	if _, err := UniversalSalt("tag", mkAddr(1), mkDigest(1), 1, ""); err == nil {
		t.Fatalf("expected error for empty version")
	}
}

func TestFacetSalt_DistinctFromUniversalSalt(t *testing.T) {
	universal, err := UniversalSalt("tag", mkAddr(1), mkDigest(1), 1, "v1")
	if err != nil {
		t.Fatalf("UniversalSalt error: %v", err)
	}
	facet, err := FacetSalt("name", "v1", 1)
	if err != nil {
		t.Fatalf("FacetSalt error: %v", err)
	}
	if universal == facet {
		t.Fatalf("facet salt collided with an unrelated universal salt")
	}
}

func TestDispatcherSalt_RejectsZeroAdmin(t *testing.T) {
	if _, err := DispatcherSalt("v1", "mainnet", codec.Address{}); err == nil {
		t.Fatalf("expected error for zero admin address")
	}
}

// Property D: CREATE2 address stability and sensitivity.
func TestPropertyD_CREATE2AddressStable(t *testing.T) {
	deployer := mkAddr(0x11)
	s := mkDigest(0x22)
	initHash := mkDigest(0x33)

	a := CREATE2Address(deployer, s, initHash)
	b := CREATE2Address(deployer, s, initHash)
	if a != b {
		t.Fatalf("CREATE2Address not stable: %x != %x", a, b)
	}
}

func TestPropertyD_CREATE2AddressSensitiveToEveryInput(t *testing.T) {
	deployer := mkAddr(0x11)
	s := mkDigest(0x22)
	initHash := mkDigest(0x33)
	base := CREATE2Address(deployer, s, initHash)

	if CREATE2Address(mkAddr(0x12), s, initHash) == base {
		t.Fatalf("address did not change with deployer")
	}
	if CREATE2Address(deployer, mkDigest(0x23), initHash) == base {
		t.Fatalf("address did not change with salt")
	}
	if CREATE2Address(deployer, s, mkDigest(0x34)) == base {
		t.Fatalf("address did not change with init code hash")
	}
}

func TestValidateInitCode(t *testing.T) {
	if err := ValidateInitCode(nil); err == nil {
		t.Fatalf("expected error for empty init code")
	}
	tooBig := make([]byte, MaxInitCodeSize+1)
	if err := ValidateInitCode(tooBig); err == nil {
		t.Fatalf("expected error for oversized init code")
	}
	ok := make([]byte, MaxInitCodeSize)
	if err := ValidateInitCode(ok); err != nil {
		t.Fatalf("ValidateInitCode rejected max-size init code: %v", err)
	}
}
