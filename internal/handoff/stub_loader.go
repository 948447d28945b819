package handoff

import "fmt"

// StubLoader is the out-of-scope placeholder for "the stage-two loader
// being invoked" (spec.md §1 lists it as a contract-only collaborator):
// portable Go cannot call the real UEFI LoadImage/StartImage boot
// services. cmd/steamcl wires StubLoader; this repository has no
// firmware-backed Loader. StubLoader lets the orchestrator's wiring compile
// and run end-to-end on a development host, logging what it would have
// done instead of touching firmware; its StartImage always fails.
type StubLoader struct {
	Log func(format string, args ...interface{})
}

func (s *StubLoader) logf(format string, args ...interface{}) {
	if s.Log != nil {
		s.Log(format, args...)
	}
}

func (s *StubLoader) LoadImage(devicePath string) (ImageHandle, error) {
	s.logf("stub loader: would load image at %s", devicePath)
	return ImageHandle{id: devicePath}, nil
}

func (s *StubLoader) SetCommandLine(img ImageHandle, cmdline string) error {
	s.logf("stub loader: would set command line %q for %s", cmdline, img.id)
	return nil
}

func (s *StubLoader) StartImage(img ImageHandle) error {
	return fmt.Errorf("stub loader: cannot start image %s outside real firmware", img.id)
}

func (s *StubLoader) UnloadImage(img ImageHandle) error {
	s.logf("stub loader: would unload %s", img.id)
	return nil
}
