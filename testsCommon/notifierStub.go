package testsCommon

import "context"

// NotifierStub -
type NotifierStub struct {
	SendTextHandler  func(ctx context.Context, text string) error
	SendImageHandler func(ctx context.Context, name string, image []byte) error
}

// SendText -
func (stub *NotifierStub) SendText(ctx context.Context, text string) error {
	if stub.SendTextHandler != nil {
		return stub.SendTextHandler(ctx, text)
	}

	return nil
}

// SendImage -
func (stub *NotifierStub) SendImage(ctx context.Context, name string, image []byte) error {
	if stub.SendImageHandler != nil {
		return stub.SendImageHandler(ctx, name, image)
	}

	return nil
}

// IsInterfaceNil -
func (stub *NotifierStub) IsInterfaceNil() bool {
	return stub == nil
}
